package gpu

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected runtime failure")

func TestHostDeviceRoundTrip(t *testing.T) {
	rt := NewHostRuntime()

	for _, n := range []int{0, 1, 3, 4, 257} {
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(i)*0.5 - 7
		}

		buf, err := HostToDevice(rt, data)
		require.NoError(t, err)
		assert.Equal(t, n, buf.Len())

		got, err := DeviceToHost(buf)
		require.NoError(t, err)
		assert.Equal(t, data, got, "n=%d", n)

		require.NoError(t, buf.Release())
	}
	assert.Zero(t, rt.Live())
}

func TestRoundTripIsBitIdentical(t *testing.T) {
	rt := NewHostRuntime()
	data := []float32{
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		math.Float32frombits(0x7fc00001), // NaN with payload
		math.Float32frombits(0x80000000), // -0
		math.SmallestNonzeroFloat32,
		math.MaxFloat32,
	}

	buf, err := HostToDevice(rt, data)
	require.NoError(t, err)
	defer buf.Release()

	got, err := DeviceToHost(buf)
	require.NoError(t, err)
	require.Len(t, got, len(data))
	for i := range data {
		assert.Equal(t, math.Float32bits(data[i]), math.Float32bits(got[i]), "index %d", i)
	}
}

func TestEmptyBufferMakesNoAllocation(t *testing.T) {
	rt := NewHostRuntime()
	rt.FailNext(OpMalloc, errInjected)

	buf, err := HostToDevice(rt, nil)
	require.NoError(t, err)
	assert.Nil(t, buf.Allocation())
	assert.Zero(t, rt.Live())

	got, err := DeviceToHost(buf)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestHostToDeviceAllocationFailure(t *testing.T) {
	rt := NewHostRuntime()
	rt.FailNext(OpMalloc, errInjected)

	buf, err := HostToDevice(rt, []float32{1, 2})
	require.Error(t, err)
	assert.Nil(t, buf)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, OpMalloc, ge.Op)
	assert.Equal(t, KindAllocation, ge.Kind)
	assert.Equal(t, uint64(8), ge.Bytes)
	assert.ErrorIs(t, err, errInjected)
}

func TestHostToDeviceAllocationLimit(t *testing.T) {
	rt := NewHostRuntime()
	rt.SetLimit(8)

	_, err := HostToDevice(rt, []float32{1, 2, 3})
	assert.ErrorIs(t, err, &Error{Kind: KindAllocation})
	assert.Zero(t, rt.Live())
}

func TestHostToDeviceCopyFailureFreesAllocation(t *testing.T) {
	rt := NewHostRuntime()
	rt.FailNext(OpMemcpyHtoD, errInjected)

	_, err := HostToDevice(rt, []float32{1, 2, 3})
	assert.ErrorIs(t, err, &Error{Op: OpMemcpyHtoD, Kind: KindCopy})
	assert.ErrorIs(t, err, errInjected)
	assert.Zero(t, rt.Live())
}

func TestHostToDeviceCopyAndFreeFailure(t *testing.T) {
	rt := NewHostRuntime()
	rt.FailNext(OpMemcpyHtoD, errInjected)
	rt.FailNext(OpFree, errors.New("free failed"))

	_, err := HostToDevice(rt, []float32{1})
	assert.ErrorIs(t, err, &Error{Kind: KindCopy})
	assert.ErrorIs(t, err, &Error{Kind: KindFree})
}

func TestDeviceToHostSurfacesCopyFailure(t *testing.T) {
	rt := NewHostRuntime()
	buf, err := HostToDevice(rt, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	defer buf.Release()

	rt.FailNext(OpMemcpyDtoH, errInjected)
	got, err := DeviceToHost(buf)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, &Error{Op: OpMemcpyDtoH, Kind: KindCopy})
	assert.ErrorIs(t, err, errInjected)

	// The buffer stays usable once the runtime recovers.
	got, err = DeviceToHost(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestDeviceToHostSurfacesSyncFailure(t *testing.T) {
	rt := NewHostRuntime()
	buf, err := HostToDevice(rt, []float32{1})
	require.NoError(t, err)
	defer buf.Release()

	rt.FailNext(OpSynchronize, errInjected)
	got, err := DeviceToHost(buf)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, &Error{Op: OpSynchronize, Kind: KindSync})
}

func TestDeviceToHostAfterRelease(t *testing.T) {
	rt := NewHostRuntime()
	buf, err := HostToDevice(rt, []float32{1})
	require.NoError(t, err)

	require.NoError(t, buf.Release())
	require.NoError(t, buf.Release())
	assert.Zero(t, rt.Live())

	_, err = DeviceToHost(buf)
	assert.ErrorIs(t, err, &Error{Kind: KindReleased})
}

func TestReleaseFailure(t *testing.T) {
	rt := NewHostRuntime()
	buf, err := HostToDevice(rt, []float32{1})
	require.NoError(t, err)

	rt.FailNext(OpFree, errInjected)
	err = buf.Release()
	assert.ErrorIs(t, err, &Error{Op: OpFree, Kind: KindFree})
	assert.Nil(t, buf.Allocation())
}

func TestWithDeviceBufferReleases(t *testing.T) {
	rt := NewHostRuntime()

	var got []float32
	err := WithDeviceBuffer(rt, []float32{1, 2, 3, 4}, func(b *DeviceBuffer) error {
		var err error
		got, err = DeviceToHost(b)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
	assert.Zero(t, rt.Live())

	err = WithDeviceBuffer(rt, []float32{1}, func(*DeviceBuffer) error { return errInjected })
	assert.ErrorIs(t, err, errInjected)
	assert.Zero(t, rt.Live())

	assert.Panics(t, func() {
		_ = WithDeviceBuffer(rt, []float32{1}, func(*DeviceBuffer) error { panic("boom") })
	})
	assert.Zero(t, rt.Live())
}

func TestForeignAllocationRejected(t *testing.T) {
	a, b := NewHostRuntime(), NewHostRuntime()
	buf, err := HostToDevice(a, []float32{1})
	require.NoError(t, err)
	defer buf.Release()

	err = b.MemcpyDtoH(make([]byte, 4), buf.Allocation())
	assert.Error(t, err)
}
