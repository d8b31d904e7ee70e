package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/deskew"
	"menu-scan/pkg/services/enrich"
	"menu-scan/pkg/services/layout"
	"menu-scan/pkg/storage"
)

var deskewCmd = &cobra.Command{
	Use:   "deskew <input> <output>",
	Short: "Straighten a photographed page",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeskew,
}

var linesJSON bool

var linesCmd = &cobra.Command{
	Use:   "lines <tokens.json>",
	Short: "Rebuild text lines from a JSON token list",
	Long: `Reads a JSON array of {"text", "bbox": {"x_min","x_max","y_min","y_max"}}
tokens and prints the reconstructed text, one line per output line.`,
	Args: cobra.ExactArgs(1),
	RunE: runLines,
}

var dishesCmd = &cobra.Command{
	Use:   "dishes",
	Short: "Manage the dish catalog",
}

var dishesImportCmd = &cobra.Command{
	Use:   "import <catalog.json>",
	Short: "Import dishes from a JSON array into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDishesImport,
}

func init() {
	linesCmd.Flags().BoolVar(&linesJSON, "json", false, "print lines with their representative y as JSON")
	dishesCmd.AddCommand(dishesImportCmd)
	rootCmd.AddCommand(deskewCmd, linesCmd, dishesCmd)
}

func runDeskew(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	engine := deskew.New(
		deskew.WithMinGain(cfg.DeskewMinGain),
		deskew.WithAngleRange(cfg.DeskewMaxAngle, cfg.DeskewStep),
	)
	res, err := engine.Deskew(cmd.Context(), data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(args[1], res.CorrectedImage, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "angle=%.2f applied=%t\n", res.AngleDegrees, res.Applied)
	return nil
}

type lineOutput struct {
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

func runLines(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read tokens: %w", err)
	}
	var tokens []models.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return fmt.Errorf("failed to decode tokens: %w", err)
	}

	doc := layout.New(
		layout.WithTolerance(cfg.LineTolerance),
		layout.WithClustering(layout.Clustering(cfg.LineClustering)),
	).Reconstruct(tokens)
	if doc.IsEmpty() {
		return fmt.Errorf("%s: %w", args[0], scanerrors.ErrNoContent)
	}

	if linesJSON {
		out := make([]lineOutput, len(doc.Lines))
		for i, l := range doc.Lines {
			out[i] = lineOutput{Y: l.RepresentativeY, Text: l.Text()}
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal lines: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}

	for _, line := range doc.Texts() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func runDishesImport(cmd *cobra.Command, args []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	dishes, err := enrich.LoadCatalog(f)
	if err != nil {
		return err
	}

	repo, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return err
	}
	if err := repo.SaveDishes(cmd.Context(), dishes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d dishes\n", len(dishes))
	return nil
}
