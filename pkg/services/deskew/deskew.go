// Package deskew straightens photographed documents before OCR.
//
// The rotation angle is found by exhaustive search: the binarized page is
// rotated through a fixed range of candidate angles and the angle whose
// horizontal projection profile has the highest variance wins. Text rows that
// line up with the pixel rows produce tall, narrow peaks in the profile, so
// higher variance means straighter text.
//
// Angles follow the usual image-editing convention: positive values rotate
// counter-clockwise as displayed.
package deskew

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

var log = logging.For("deskew")

const (
	DefaultMinGain     = 1.03
	DefaultMaxAngle    = 10.0
	DefaultStep        = 0.5
	DefaultAnalysisMax = 1200
)

// Engine estimates and corrects small page rotations.
type Engine struct {
	minGain     float64
	maxAngle    float64
	step        float64
	analysisMax int

	blurSigma  float64
	meanSigma  float64
	thresholdC float64
	closeW     int
	closeH     int
}

// Option configures the engine.
type Option func(*Engine)

// WithMinGain sets the variance ratio the best angle must reach over the
// unrotated baseline before a rotation is applied.
func WithMinGain(gain float64) Option {
	return func(e *Engine) {
		if gain >= 1 {
			e.minGain = gain
		}
	}
}

// WithAngleRange sets the symmetric search range and step, in degrees.
func WithAngleRange(maxAngle, step float64) Option {
	return func(e *Engine) {
		if maxAngle > 0 && step > 0 && step <= maxAngle {
			e.maxAngle = maxAngle
			e.step = step
		}
	}
}

// WithAnalysisSize bounds the longest side of the image used for the search.
// Zero disables downscaling.
func WithAnalysisSize(px int) Option {
	return func(e *Engine) {
		if px >= 0 {
			e.analysisMax = px
		}
	}
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		minGain:     DefaultMinGain,
		maxAngle:    DefaultMaxAngle,
		step:        DefaultStep,
		analysisMax: DefaultAnalysisMax,
		blurSigma:   1.0,
		meanSigma:   2.6,
		thresholdC:  10,
		closeW:      9,
		closeH:      3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate is the outcome of the angle search.
type Estimate struct {
	Angle            float64
	BaselineVariance float64
	BestVariance     float64
}

// Gain is the ratio of the best variance to the unrotated baseline.
func (est Estimate) Gain() float64 {
	if est.BaselineVariance <= 0 {
		return 1
	}
	return est.BestVariance / est.BaselineVariance
}

// Deskew decodes the image, searches for the correcting angle and, when the
// gain is large enough, returns a re-encoded rotated copy. Otherwise the
// original bytes are returned untouched with Applied=false.
func (e *Engine) Deskew(ctx context.Context, data []byte) (models.DeskewResult, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.DeskewResult{}, fmt.Errorf("%w: %v", scanerrors.ErrInvalidImage, err)
	}

	est, err := e.Estimate(ctx, img)
	if err != nil {
		return models.DeskewResult{}, err
	}

	logger := log.WithFields(logrus.Fields{
		"width":    img.Bounds().Dx(),
		"height":   img.Bounds().Dy(),
		"angle":    est.Angle,
		"gain":     est.Gain(),
		"min_gain": e.minGain,
		"baseline": est.BaselineVariance,
		"best":     est.BestVariance,
	})

	if est.Angle == 0 || est.BaselineVariance <= 0 || est.Gain() < e.minGain {
		logger.Debug("Deskew not needed")
		return models.DeskewResult{CorrectedImage: data}, nil
	}

	rotated := RotateReplicate(img, est.Angle)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rotated, outputFormat(format), imaging.JPEGQuality(92)); err != nil {
		return models.DeskewResult{}, fmt.Errorf("failed to encode deskewed image: %w", err)
	}

	logger.Info("Deskew applied")
	return models.DeskewResult{
		CorrectedImage: buf.Bytes(),
		AngleDegrees:   est.Angle,
		Applied:        true,
	}, nil
}

// Estimate runs the angle search on an already decoded image.
func (e *Engine) Estimate(ctx context.Context, img image.Image) (Estimate, error) {
	mask := e.binarize(img)

	baseline := variance(rowProfileGray(mask))
	est := Estimate{BaselineVariance: baseline, BestVariance: baseline}

	b := mask.Bounds()
	scratch := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	steps := int(math.Round(e.maxAngle / e.step))

	for i := -steps; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return Estimate{}, err
		}
		angle := float64(i) * e.step
		if angle == 0 {
			continue
		}

		draw.Draw(scratch, scratch.Bounds(), image.Transparent, image.Point{}, draw.Src)
		draw.NearestNeighbor.Transform(scratch, rotationAbout(angle, b.Dx(), b.Dy(), 0), mask, b, draw.Src, nil)

		v := variance(rowProfileRGBA(scratch))
		if v > est.BestVariance || (v == est.BestVariance && math.Abs(angle) < math.Abs(est.Angle)) {
			est.BestVariance = v
			est.Angle = angle
		}
	}

	return est, nil
}

// binarize produces a foreground mask (255 = ink) suitable for profiling.
// The local threshold is the gaussian-weighted neighborhood mean minus a
// constant, which copes with uneven lighting across a photo.
func (e *Engine) binarize(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	if e.analysisMax > 0 {
		b := gray.Bounds()
		if b.Dx() > e.analysisMax || b.Dy() > e.analysisMax {
			gray = imaging.Fit(gray, e.analysisMax, e.analysisMax, imaging.Box)
		}
	}

	smooth := imaging.Blur(gray, e.blurSigma)
	local := imaging.Blur(smooth, e.meanSigma)

	b := smooth.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srow := smooth.Pix[y*smooth.Stride:]
		lrow := local.Pix[y*local.Stride:]
		mrow := mask.Pix[y*mask.Stride:]
		for x := 0; x < w; x++ {
			if float64(srow[x*4]) < float64(lrow[x*4])-e.thresholdC {
				mrow[x] = 255
			}
		}
	}

	return closeMask(mask, e.closeW, e.closeH)
}

// rotationAbout returns the affine map rotating by angle degrees about the
// center of a w×h image whose pixels are offset by pad in the source.
func rotationAbout(angle float64, w, h, pad int) f64.Aff3 {
	rad := angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w)/2, float64(h)/2
	ox, oy := cx+float64(pad), cy+float64(pad)
	return f64.Aff3{
		c, s, cx - c*ox - s*oy,
		-s, c, cy + s*ox - c*oy,
	}
}

// RotateReplicate rotates img about its center by angle degrees using
// Catmull-Rom interpolation. The canvas keeps its size and pixels uncovered
// by the source take the nearest edge color.
func RotateReplicate(img image.Image, angle float64) *image.RGBA {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	rad := math.Abs(angle) * math.Pi / 180
	pad := int(math.Ceil(float64(w+h)/2*math.Sin(rad))) + 4
	padded := padReplicate(src, pad)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Transform(dst, rotationAbout(angle, w, h, pad), padded, padded.Bounds(), draw.Src, nil)
	return dst
}

// padReplicate surrounds src with pad pixels copied from its nearest edge.
func padReplicate(src *image.NRGBA, pad int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	for y := 0; y < h+2*pad; y++ {
		sy := clampInt(y-pad, 0, h-1)
		srow := src.Pix[sy*src.Stride : sy*src.Stride+w*4]
		drow := out.Pix[y*out.Stride : y*out.Stride+(w+2*pad)*4]
		for x := 0; x < pad; x++ {
			copy(drow[x*4:x*4+4], srow[0:4])
			copy(drow[(pad+w+x)*4:(pad+w+x)*4+4], srow[(w-1)*4:w*4])
		}
		copy(drow[pad*4:(pad+w)*4], srow)
	}
	return out
}

func outputFormat(name string) imaging.Format {
	if f, err := imaging.FormatFromExtension(name); err == nil {
		return f
	}
	return imaging.JPEG
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
