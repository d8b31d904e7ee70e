package deskew

import "image"

// rowProfileGray sums foreground pixels per row of a mask.
func rowProfileGray(m *image.Gray) []float64 {
	b := m.Bounds()
	profile := make([]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()]
		n := 0
		for _, v := range row {
			if v > 127 {
				n++
			}
		}
		profile[y] = float64(n)
	}
	return profile
}

// rowProfileRGBA sums foreground pixels per row, reading the red channel.
func rowProfileRGBA(m *image.RGBA) []float64 {
	b := m.Bounds()
	profile := make([]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()*4]
		n := 0
		for x := 0; x < len(row); x += 4 {
			if row[x] > 127 {
				n++
			}
		}
		profile[y] = float64(n)
	}
	return profile
}

// variance is the population variance of the values.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(values))
}

// closeMask applies a morphological closing (dilate, then erode) with a
// kw×kh rectangle. Pixels outside the image never constrain the result.
func closeMask(m *image.Gray, kw, kh int) *image.Gray {
	if kw <= 1 && kh <= 1 {
		return m
	}
	return morph(morph(m, kw, kh, true), kw, kh, false)
}

// morph runs a separable rectangular dilation (dilate=true) or erosion.
func morph(m *image.Gray, kw, kh int, dilate bool) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	rx, ry := kw/2, kh/2

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	line := make([]bool, max(w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			line[x] = m.Pix[y*m.Stride+x] > 127
		}
		out := window(line[:w], rx, dilate)
		for x := 0; x < w; x++ {
			if out[x] {
				tmp.Pix[y*tmp.Stride+x] = 255
			}
		}
	}

	res := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			line[y] = tmp.Pix[y*tmp.Stride+x] > 127
		}
		out := window(line[:h], ry, dilate)
		for y := 0; y < h; y++ {
			if out[y] {
				res.Pix[y*res.Stride+x] = 255
			}
		}
	}
	return res
}

// window evaluates "any set" (dilate) or "all set" (erode) over [i-r, i+r],
// clipped to the slice, using a prefix count.
func window(in []bool, r int, dilate bool) []bool {
	n := len(in)
	prefix := make([]int, n+1)
	for i, v := range in {
		prefix[i+1] = prefix[i]
		if v {
			prefix[i+1]++
		}
	}
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		lo := max(0, i-r)
		hi := min(n, i+r+1)
		set := prefix[hi] - prefix[lo]
		if dilate {
			out[i] = set > 0
		} else {
			out[i] = set == hi-lo
		}
	}
	return out
}
