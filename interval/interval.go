// Package interval describes iterable N-dimensional images: a grid of
// (possibly complex) samples addressed by integer coordinates, visited by a
// cursor that touches every element exactly once.
package interval

// Sample is one element of an image. Real-valued images report a zero
// imaginary part and ignore SetImaginary.
type Sample interface {
	RealFloat() float32
	ImaginaryFloat() float32
	SetReal(v float32)
	SetImaginary(v float32)
}

// Cursor walks every element of an Interval once, in an order chosen by the
// implementation.
type Cursor interface {
	HasNext() bool
	Fwd()
	// Localize writes the current coordinates into pos, one entry per
	// dimension. pos must have at least NumDimensions entries.
	Localize(pos []int64)
	// Get returns the sample under the cursor. Writes go straight to the image.
	Get() Sample
}

// Interval is an iterable image with a dense rectangular domain.
type Interval interface {
	NumDimensions() int
	Dimension(d int) int64
	Cursor() Cursor
}

// Size returns the number of elements in ii.
func Size(ii Interval) int64 {
	n := int64(1)
	for d := 0; d < ii.NumDimensions(); d++ {
		n *= ii.Dimension(d)
	}
	return n
}

// Dimensions returns every extent of ii.
func Dimensions(ii Interval) []int64 {
	dims := make([]int64, ii.NumDimensions())
	for d := range dims {
		dims[d] = ii.Dimension(d)
	}
	return dims
}
