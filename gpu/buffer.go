package gpu

import (
	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const floatBytes = 4

// DeviceBuffer is a float32 buffer resident in device memory. It is not
// safe for concurrent use.
type DeviceBuffer struct {
	rt       Runtime
	alloc    Allocation // nil for empty buffers
	count    int
	released bool
}

// Len returns the number of float32 elements in the buffer.
func (b *DeviceBuffer) Len() int { return b.count }

// Runtime returns the runtime owning the buffer.
func (b *DeviceBuffer) Runtime() Runtime { return b.rt }

// Allocation returns the underlying device allocation, nil once released or
// for an empty buffer.
func (b *DeviceBuffer) Allocation() Allocation {
	if b.released {
		return nil
	}
	return b.alloc
}

// Release frees the device memory. Calling it again is a no-op.
func (b *DeviceBuffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	if b.alloc == nil {
		return nil
	}
	bytes := b.alloc.Bytes()
	err := b.rt.Free(b.alloc)
	b.alloc = nil
	if err != nil {
		return check(OpFree, bytes, err)
	}
	Logger().Debug("freed device buffer", zap.String("runtime", b.rt.Name()), zap.Uint64("bytes", bytes))
	return nil
}

// HostToDevice allocates len(data)*4 bytes on rt and copies data into it.
func HostToDevice(rt Runtime, data []float32) (*DeviceBuffer, error) {
	b := &DeviceBuffer{rt: rt, count: len(data)}
	if len(data) == 0 {
		return b, nil
	}

	bytes := uint64(len(data)) * floatBytes
	alloc, err := rt.Malloc(bytes)
	if err != nil {
		return nil, check(OpMalloc, bytes, err)
	}
	if err := rt.MemcpyHtoD(alloc, wgpu.ToBytes(data)); err != nil {
		err = check(OpMemcpyHtoD, bytes, err)
		if ferr := rt.Free(alloc); ferr != nil {
			err = multierr.Append(err, check(OpFree, bytes, ferr))
		}
		return nil, err
	}

	b.alloc = alloc
	Logger().Debug("uploaded device buffer", zap.String("runtime", rt.Name()), zap.Uint64("bytes", bytes))
	return b, nil
}

// DeviceToHost waits for all outstanding device work, then copies the
// buffer into a new slice. The wait is device wide.
func DeviceToHost(b *DeviceBuffer) ([]float32, error) {
	if b.released {
		return nil, check(OpMemcpyDtoH, 0, &Error{Op: OpMemcpyDtoH, Kind: KindReleased})
	}
	if b.count == 0 {
		return []float32{}, nil
	}

	bytes := uint64(b.count) * floatBytes
	if err := b.rt.Synchronize(); err != nil {
		return nil, check(OpSynchronize, 0, err)
	}
	raw := make([]byte, bytes)
	if err := b.rt.MemcpyDtoH(raw, b.alloc); err != nil {
		return nil, check(OpMemcpyDtoH, bytes, err)
	}
	result := make([]float32, b.count)
	copy(result, wgpu.FromBytes[float32](raw))
	return result, nil
}

// WithDeviceBuffer uploads data, runs fn with the device buffer and releases
// it on every return path, including panics.
func WithDeviceBuffer(rt Runtime, data []float32, fn func(*DeviceBuffer) error) (err error) {
	b, err := HostToDevice(rt, data)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, b.Release())
	}()
	return fn(b)
}
