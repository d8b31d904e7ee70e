package deskew

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "menu-scan/pkg/errors"
)

// menuPage draws rows of dark word-shaped bars on a white page.
func menuPage() *image.NRGBA {
	img := imaging.New(480, 360, color.White)
	black := color.NRGBA{A: 255}
	for row := 0; row < 8; row++ {
		y0 := 40 + row*36
		for x0 := 40; x0+60 <= 440; x0 += 75 {
			for y := y0; y < y0+8; y++ {
				for x := x0; x < x0+60; x++ {
					img.SetNRGBA(x, y, black)
				}
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestDeskewCorrectsRotatedPage(t *testing.T) {
	tilted := imaging.Rotate(menuPage(), 6, color.White)
	data := encodePNG(t, tilted)

	res, err := New().Deskew(context.Background(), data)
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.InDelta(t, -6.0, res.AngleDegrees, 0.51)

	out, format, err := image.Decode(bytes.NewReader(res.CorrectedImage))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, tilted.Bounds().Size(), out.Bounds().Size())
}

func TestDeskewLeavesStraightPageUntouched(t *testing.T) {
	data := encodePNG(t, menuPage())

	res, err := New().Deskew(context.Background(), data)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Zero(t, res.AngleDegrees)
	assert.Equal(t, data, res.CorrectedImage)
}

func TestDeskewBlankPage(t *testing.T) {
	data := encodePNG(t, imaging.New(200, 150, color.White))

	res, err := New().Deskew(context.Background(), data)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Equal(t, data, res.CorrectedImage)
}

func TestDeskewRejectsGarbage(t *testing.T) {
	_, err := New().Deskew(context.Background(), []byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, scanerrors.ErrInvalidImage)
}

func TestDeskewHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Deskew(ctx, encodePNG(t, menuPage()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimateBaselineIsBestForStraightPage(t *testing.T) {
	est, err := New().Estimate(context.Background(), menuPage())
	require.NoError(t, err)

	assert.Zero(t, est.Angle)
	assert.Greater(t, est.BaselineVariance, 0.0)
	assert.Equal(t, 1.0, est.Gain())
}

func TestRotateReplicateFillsCorners(t *testing.T) {
	red := imaging.New(120, 80, color.NRGBA{R: 200, A: 255})

	out := RotateReplicate(red, 5)
	require.Equal(t, image.Pt(120, 80), out.Bounds().Size())

	for _, p := range []image.Point{{0, 0}, {119, 0}, {0, 79}, {119, 79}, {60, 40}} {
		c := out.RGBAAt(p.X, p.Y)
		assert.InDelta(t, 200, int(c.R), 2, "point %v", p)
		assert.InDelta(t, 255, int(c.A), 1, "point %v", p)
	}
}

func TestCloseMaskBridgesSmallGaps(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 20, 5))
	for x := 0; x < 20; x++ {
		if x == 8 || x == 9 {
			continue
		}
		m.Pix[2*m.Stride+x] = 255
	}

	closed := closeMask(m, 9, 3)

	for x := 0; x < 20; x++ {
		assert.Equal(t, uint8(255), closed.Pix[2*closed.Stride+x], "x=%d", x)
	}
	assert.Equal(t, uint8(0), closed.Pix[0])
}

func TestVariance(t *testing.T) {
	assert.Zero(t, variance(nil))
	assert.Zero(t, variance([]float64{3, 3, 3}))
	assert.InDelta(t, 4.0, variance([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
