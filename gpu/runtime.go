package gpu

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// Allocation is an opaque block of device memory owned by a Runtime.
type Allocation interface {
	Bytes() uint64
}

// Runtime is the accelerator contract transfers are built on. Every call
// is synchronous from the caller's point of view.
type Runtime interface {
	Name() string
	Malloc(bytes uint64) (Allocation, error)
	MemcpyHtoD(dst Allocation, src []byte) error
	MemcpyDtoH(dst []byte, src Allocation) error
	// Synchronize blocks until every outstanding piece of device work has
	// finished, not only work issued by the caller.
	Synchronize() error
	Free(a Allocation) error
}

// Default returns the WebGPU runtime when an adapter can be initialized and
// the host runtime otherwise. IMGBUF_GPU=off skips the adapter probe.
func Default() Runtime {
	if strings.EqualFold(os.Getenv("IMGBUF_GPU"), "off") {
		Logger().Info("gpu disabled by environment, using host runtime")
		return NewHostRuntime()
	}
	rt, err := NewWGPURuntime(nil)
	if err != nil {
		Logger().Warn("falling back to host runtime", zap.Error(err))
		return NewHostRuntime()
	}
	return rt
}
