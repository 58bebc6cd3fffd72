// Package convert copies image samples between iterable images and flat
// float32 buffers.
//
// Buffers are linearized with axis 0 fastest in both directions:
//
//	real 2D:            x + y*W
//	real 3D:            x + y*W + z*W*H
//	interleaved complex: 2*(x + y*W) real, then imaginary at the next index
//
// Images must have a dense rectangular domain. The cursor may visit
// elements in any order.
package convert

import (
	"errors"
	"fmt"

	"github.com/openfluke/imgbuf/interval"
)

var (
	// ErrDimensionality is returned when an image has the wrong number of axes.
	ErrDimensionality = errors.New("unsupported dimensionality")
	// ErrOutOfBounds is returned when a cursor reports a position outside
	// the image extents.
	ErrOutOfBounds = errors.New("position out of bounds")
	// ErrLengthMismatch is returned when a buffer does not match the image size.
	ErrLengthMismatch = errors.New("buffer length does not match image")
)

// layout is the linearization of one image.
type layout struct {
	dims []int64
	size int64
}

func newLayout(ii interval.Interval, want ...int) (layout, error) {
	n := ii.NumDimensions()
	ok := false
	for _, w := range want {
		if n == w {
			ok = true
			break
		}
	}
	if !ok {
		return layout{}, fmt.Errorf("%w: image has %d dimensions, want %v", ErrDimensionality, n, want)
	}
	l := layout{dims: interval.Dimensions(ii), size: 1}
	for _, d := range l.dims {
		l.size *= d
	}
	return l, nil
}

// index maps pos to its offset in a real buffer.
func (l layout) index(pos []int64) (int64, error) {
	var idx, stride int64 = 0, 1
	for d, ext := range l.dims {
		if pos[d] < 0 || pos[d] >= ext {
			return 0, fmt.Errorf("%w: %v in %v", ErrOutOfBounds, pos, l.dims)
		}
		idx += pos[d] * stride
		stride *= ext
	}
	return idx, nil
}

// walk calls fn with the real-buffer index of every element of ii.
func (l layout) walk(ii interval.Interval, fn func(idx int64, s interval.Sample)) error {
	c := ii.Cursor()
	pos := make([]int64, len(l.dims))
	for c.HasNext() {
		c.Fwd()
		c.Localize(pos)
		idx, err := l.index(pos)
		if err != nil {
			return err
		}
		fn(idx, c.Get())
	}
	return nil
}

func toFloats(ii interval.Interval, want int) ([]float32, error) {
	l, err := newLayout(ii, want)
	if err != nil {
		return nil, err
	}
	data := make([]float32, l.size)
	err = l.walk(ii, func(idx int64, s interval.Sample) {
		data[idx] = s.RealFloat()
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ToFloats2D returns the real parts of a 2D image, length W*H.
func ToFloats2D(ii interval.Interval) ([]float32, error) {
	return toFloats(ii, 2)
}

// ToFloats3D returns the real parts of a 3D image, length W*H*D.
func ToFloats3D(ii interval.Interval) ([]float32, error) {
	return toFloats(ii, 3)
}

// ToFloats converts a 2D or 3D image, whichever ii is.
func ToFloats(ii interval.Interval) ([]float32, error) {
	if ii.NumDimensions() == 3 {
		return ToFloats3D(ii)
	}
	return ToFloats2D(ii)
}

// ToComplexFloats2D returns a 2D image as interleaved real/imaginary pairs,
// length 2*W*H.
func ToComplexFloats2D(ii interval.Interval) ([]float32, error) {
	l, err := newLayout(ii, 2)
	if err != nil {
		return nil, err
	}
	data := make([]float32, 2*l.size)
	err = l.walk(ii, func(idx int64, s interval.Sample) {
		data[2*idx] = s.RealFloat()
		data[2*idx+1] = s.ImaginaryFloat()
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// FromFloats overwrites the real part of every element of out, a 2D or 3D
// image, from in. Imaginary parts are left untouched.
func FromFloats(in []float32, out interval.Interval) error {
	l, err := newLayout(out, 2, 3)
	if err != nil {
		return err
	}
	if int64(len(in)) != l.size {
		return fmt.Errorf("%w: %d values for %v", ErrLengthMismatch, len(in), l.dims)
	}
	return l.walk(out, func(idx int64, s interval.Sample) {
		s.SetReal(in[idx])
	})
}

// FromComplexFloats2D writes interleaved real/imaginary pairs into a 2D
// image.
func FromComplexFloats2D(in []float32, out interval.Interval) error {
	l, err := newLayout(out, 2)
	if err != nil {
		return err
	}
	if int64(len(in)) != 2*l.size {
		return fmt.Errorf("%w: %d values for complex %v", ErrLengthMismatch, len(in), l.dims)
	}
	return l.walk(out, func(idx int64, s interval.Sample) {
		s.SetReal(in[2*idx])
		s.SetImaginary(in[2*idx+1])
	})
}
