package gpu

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHost(t *testing.T) {
	rt := NewHostRuntime()
	rt.SetLimit(1 << 20)

	rep := Probe(rt)
	assert.Equal(t, "host", rep.Runtime)
	assert.Equal(t, uint64(1<<20), rep.MaxBufferSize)
	assert.Equal(t, uint64(1<<18), rep.MaxElements)

	s, err := rep.JSON()
	require.NoError(t, err)

	var back Report
	require.NoError(t, json.Unmarshal([]byte(s), &back))
	assert.Equal(t, rep, back)
	assert.NotContains(t, s, "adapter")
}

func TestProbeWGPU(t *testing.T) {
	rt := newTestWGPURuntime(t)

	rep := Probe(rt)
	assert.Contains(t, rep.Runtime, "wgpu")
	assert.Equal(t, rep.MaxBufferSize/4, rep.MaxElements)
}
