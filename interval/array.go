package interval

import "fmt"

// ArrayImg is a dense image stored as complex64 in a single slice. Axis 0
// varies fastest, so element (x, y, z) lives at x + y*W + z*W*H.
type ArrayImg struct {
	Data    []complex64
	Shape   []int64
	Strides []int64
}

// NewArrayImg allocates a zeroed image with the given extents.
func NewArrayImg(shape ...int64) *ArrayImg {
	n := int64(1)
	strides := make([]int64, len(shape))
	for d, ext := range shape {
		if ext < 0 {
			panic(fmt.Sprintf("interval: negative extent %d on axis %d", ext, d))
		}
		strides[d] = n
		n *= ext
	}
	return &ArrayImg{
		Data:    make([]complex64, n),
		Shape:   append([]int64(nil), shape...),
		Strides: strides,
	}
}

// NewArrayImgFromReal builds an image whose real parts are taken from data,
// laid out with axis 0 fastest.
func NewArrayImgFromReal(data []float32, shape ...int64) *ArrayImg {
	img := NewArrayImg(shape...)
	if len(data) != len(img.Data) {
		panic(fmt.Sprintf("interval: %d values for shape %v", len(data), shape))
	}
	for i, v := range data {
		img.Data[i] = complex(v, 0)
	}
	return img
}

func (a *ArrayImg) NumDimensions() int { return len(a.Shape) }

func (a *ArrayImg) Dimension(d int) int64 { return a.Shape[d] }

func (a *ArrayImg) Cursor() Cursor { return &arrayCursor{img: a, i: -1} }

// Index returns the flat offset of pos.
func (a *ArrayImg) Index(pos ...int64) int64 {
	var i int64
	for d, p := range pos {
		i += p * a.Strides[d]
	}
	return i
}

// At returns the sample at pos.
func (a *ArrayImg) At(pos ...int64) complex64 { return a.Data[a.Index(pos...)] }

// Set stores v at pos.
func (a *ArrayImg) Set(v complex64, pos ...int64) { a.Data[a.Index(pos...)] = v }

// Reals returns a copy of the real parts in storage order.
func (a *ArrayImg) Reals() []float32 {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = real(v)
	}
	return out
}

type arrayCursor struct {
	img *ArrayImg
	i   int
}

func (c *arrayCursor) HasNext() bool { return c.i+1 < len(c.img.Data) }

func (c *arrayCursor) Fwd() { c.i++ }

func (c *arrayCursor) Localize(pos []int64) {
	rem := int64(c.i)
	for d := len(c.img.Shape) - 1; d >= 0; d-- {
		pos[d] = rem / c.img.Strides[d]
		rem %= c.img.Strides[d]
	}
}

func (c *arrayCursor) Get() Sample { return &arraySample{v: &c.img.Data[c.i]} }

type arraySample struct{ v *complex64 }

func (s *arraySample) RealFloat() float32      { return real(*s.v) }
func (s *arraySample) ImaginaryFloat() float32 { return imag(*s.v) }
func (s *arraySample) SetReal(v float32)       { *s.v = complex(v, imag(*s.v)) }
func (s *arraySample) SetImaginary(v float32)  { *s.v = complex(real(*s.v), v) }
