// Package layout rebuilds reading-order lines from positional OCR tokens.
package layout

import (
	"cmp"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

var log = logging.For("layout")

// DefaultTolerance is the vertical distance, in pixels, within which a token
// joins an existing line.
const DefaultTolerance = 8.0

// Clustering selects how a line's representative y is maintained.
type Clustering string

const (
	// FirstMember fixes the representative y to the first token that opened the line.
	FirstMember Clustering = "first"
	// Centroid keeps the representative y at the running mean of member centers.
	Centroid Clustering = "centroid"
)

// Reconstructor groups tokens into lines.
type Reconstructor struct {
	tolerance  float64
	clustering Clustering
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithTolerance sets the vertical clustering tolerance. Non-positive values are ignored.
func WithTolerance(tol float64) Option {
	return func(r *Reconstructor) {
		if tol > 0 {
			r.tolerance = tol
		}
	}
}

// WithClustering selects the representative-y policy. Unknown values are ignored.
func WithClustering(c Clustering) Option {
	return func(r *Reconstructor) {
		switch c {
		case FirstMember, Centroid:
			r.clustering = c
		}
	}
}

// New creates a Reconstructor with the given options.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{
		tolerance:  DefaultTolerance,
		clustering: FirstMember,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type group struct {
	repY  float64
	sumY  float64
	order int
	toks  []models.Token
}

// Reconstruct clusters tokens in arrival order. A token joins the first
// existing line whose representative y is within tolerance of its center,
// otherwise it opens a new line. Lines come back top to bottom with tokens
// left to right. An empty input yields models.NoContent.
func (r *Reconstructor) Reconstruct(tokens []models.Token) models.Document {
	if len(tokens) == 0 {
		return models.NoContent
	}

	var groups []*group
	for _, tok := range tokens {
		cy := tok.CenterY()
		var target *group
		for _, g := range groups {
			if math.Abs(g.repY-cy) <= r.tolerance {
				target = g
				break
			}
		}
		if target == nil {
			groups = append(groups, &group{
				repY:  cy,
				sumY:  cy,
				order: len(groups),
				toks:  []models.Token{tok},
			})
			continue
		}
		target.toks = append(target.toks, tok)
		if r.clustering == Centroid {
			target.sumY += cy
			target.repY = target.sumY / float64(len(target.toks))
		}
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		if c := cmp.Compare(a.repY, b.repY); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	doc := models.Document{Lines: make([]models.Line, 0, len(groups))}
	for _, g := range groups {
		slices.SortStableFunc(g.toks, func(a, b models.Token) int {
			return cmp.Compare(a.BBox.XMin, b.BBox.XMin)
		})
		doc.Lines = append(doc.Lines, models.Line{
			RepresentativeY: g.repY,
			Tokens:          g.toks,
		})
	}

	log.WithFields(logrus.Fields{
		"tokens":     len(tokens),
		"lines":      len(doc.Lines),
		"tolerance":  r.tolerance,
		"clustering": r.clustering,
	}).Debug("Reconstructed lines")

	return doc
}

// Text is a convenience wrapper returning the rendered document text.
func (r *Reconstructor) Text(tokens []models.Token) string {
	return r.Reconstruct(tokens).Render()
}
