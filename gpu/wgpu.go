package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// WGPUOptions configures adapter selection and readback.
type WGPUOptions struct {
	PowerPreference wgpu.PowerPreference
	// PreferVendor is matched case-insensitively against adapter and vendor
	// names before falling back to PowerPreference. Empty disables it.
	PreferVendor string
	// MapTimeout bounds how long a readback waits for its staging buffer.
	MapTimeout time.Duration
}

func (o *WGPUOptions) withDefaults() WGPUOptions {
	out := WGPUOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
		PreferVendor:    preferredVendor(),
		MapTimeout:      2 * time.Second,
	}
	if o == nil {
		return out
	}
	if o.PowerPreference != 0 {
		out.PowerPreference = o.PowerPreference
	}
	if o.PreferVendor != "" {
		out.PreferVendor = o.PreferVendor
	}
	if o.MapTimeout > 0 {
		out.MapTimeout = o.MapTimeout
	}
	return out
}

// WGPURuntime implements Runtime on the shared WebGPU device.
type WGPURuntime struct {
	ctx  *Context
	opts WGPUOptions
}

type wgpuAllocation struct {
	buf  *wgpu.Buffer
	size uint64
}

func (a *wgpuAllocation) Bytes() uint64 { return a.size }

// NewWGPURuntime initializes (or reuses) the WebGPU context.
func NewWGPURuntime(opts *WGPUOptions) (*WGPURuntime, error) {
	c, err := GetContext(opts)
	if err != nil {
		return nil, check(OpInit, 0, err)
	}
	return &WGPURuntime{ctx: c, opts: opts.withDefaults()}, nil
}

func (r *WGPURuntime) Name() string { return "wgpu:" + r.ctx.AdapterName }

// Context exposes the underlying device for callers dispatching their own
// kernels against the buffers.
func (r *WGPURuntime) Context() *Context { return r.ctx }

// Buffer returns the WebGPU buffer behind a, or nil if a came from another
// runtime.
func (r *WGPURuntime) Buffer(a Allocation) *wgpu.Buffer {
	wa, ok := a.(*wgpuAllocation)
	if !ok {
		return nil
	}
	return wa.buf
}

func (r *WGPURuntime) allocation(a Allocation) (*wgpuAllocation, error) {
	wa, ok := a.(*wgpuAllocation)
	if !ok || wa.buf == nil {
		return nil, errForeignAllocation
	}
	return wa, nil
}

func (r *WGPURuntime) Malloc(bytes uint64) (Allocation, error) {
	if r.ctx.MaxBufferSize > 0 && bytes > r.ctx.MaxBufferSize {
		return nil, fmt.Errorf("requested %d bytes exceeds adapter limit of %d", bytes, r.ctx.MaxBufferSize)
	}
	buf, err := r.ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "imgbuf",
		Size:  bytes,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer: %v", err)
	}
	return &wgpuAllocation{buf: buf, size: bytes}, nil
}

// MemcpyHtoD uploads through a staging buffer and waits for the copy, so
// src may be reused as soon as it returns.
func (r *WGPURuntime) MemcpyHtoD(dst Allocation, src []byte) error {
	wa, err := r.allocation(dst)
	if err != nil {
		return err
	}
	size := uint64(len(src))
	if size > wa.size {
		return fmt.Errorf("copy of %d bytes into %d byte buffer", size, wa.size)
	}

	staging, err := r.ctx.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "imgbuf-upload",
		Contents: src,
		Usage:    wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("failed to create staging buffer: %v", err)
	}
	defer staging.Destroy()

	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %v", err)
	}
	encoder.CopyBufferToBuffer(staging, 0, wa.buf, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command: %v", err)
	}
	r.ctx.Queue.Submit(cmd)
	r.ctx.Device.Poll(true, nil)
	return nil
}

func (r *WGPURuntime) MemcpyDtoH(dst []byte, src Allocation) error {
	wa, err := r.allocation(src)
	if err != nil {
		return err
	}
	size := uint64(len(dst))
	if size > wa.size {
		return fmt.Errorf("copy of %d bytes from %d byte buffer", size, wa.size)
	}

	staging, err := r.ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "imgbuf-readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create staging buffer: %v", err)
	}
	defer staging.Destroy()

	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %v", err)
	}
	encoder.CopyBufferToBuffer(wa.buf, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command: %v", err)
	}
	r.ctx.Queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return fmt.Errorf("MapAsync failed: %v", err)
	}

	// Poll(true) can block forever on a lost device; poll without waiting
	// so the timeout stays in charge.
	timeout := time.After(r.opts.MapTimeout)
Loop:
	for {
		r.ctx.Device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return fmt.Errorf("readback timed out after %v", r.opts.MapTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return mapErr
	}

	data := staging.GetMappedRange(0, uint(size))
	if data == nil {
		return errors.New("failed to get mapped range")
	}
	copy(dst, data)
	staging.Unmap()
	return nil
}

// Synchronize drains the whole device queue.
func (r *WGPURuntime) Synchronize() error {
	if r.ctx.Device == nil {
		return ErrNoGPU
	}
	r.ctx.Device.Poll(true, nil)
	return nil
}

func (r *WGPURuntime) Free(a Allocation) error {
	wa, err := r.allocation(a)
	if err != nil {
		return err
	}
	wa.buf.Destroy()
	wa.buf = nil
	return nil
}
