package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWGPURuntime(t *testing.T) *WGPURuntime {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping adapter probe in short mode")
	}
	rt, err := NewWGPURuntime(nil)
	if err != nil {
		t.Skipf("no WebGPU adapter (expected on CI): %v", err)
	}
	return rt
}

func TestWGPURoundTrip(t *testing.T) {
	rt := newTestWGPURuntime(t)
	t.Logf("using %s", rt.Name())

	data := make([]float32, 1024)
	for i := range data {
		data[i] = float32(i) / 3
	}

	buf, err := HostToDevice(rt, data)
	require.NoError(t, err)
	defer buf.Release()
	assert.NotNil(t, rt.Buffer(buf.Allocation()))

	got, err := DeviceToHost(buf)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWGPUAllocationAboveLimit(t *testing.T) {
	rt := newTestWGPURuntime(t)
	if rt.Context().MaxBufferSize == 0 {
		t.Skip("adapter reports no buffer limit")
	}

	_, err := rt.Malloc(rt.Context().MaxBufferSize + 4)
	assert.Error(t, err)
}

func TestWGPURejectsHostAllocation(t *testing.T) {
	rt := newTestWGPURuntime(t)
	a, err := NewHostRuntime().Malloc(4)
	require.NoError(t, err)

	assert.Nil(t, rt.Buffer(a))
	assert.Error(t, rt.MemcpyHtoD(a, make([]byte, 4)))
}

func TestWGPUOptionsDefaults(t *testing.T) {
	t.Setenv("IMGBUF_PREFER_VENDOR", "amd")

	var nilOpts *WGPUOptions
	got := nilOpts.withDefaults()
	assert.Equal(t, "amd", got.PreferVendor)
	assert.NotZero(t, got.MapTimeout)

	got = (&WGPUOptions{PreferVendor: "intel"}).withDefaults()
	assert.Equal(t, "intel", got.PreferVendor)
}
