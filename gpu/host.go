package gpu

import (
	"errors"
	"fmt"
	"sync"
)

var errForeignAllocation = errors.New("allocation does not belong to this runtime")

// HostRuntime emulates device memory in host RAM. It backs Default when no
// adapter is present and lets tests inject failures per operation.
type HostRuntime struct {
	mu       sync.Mutex
	live     map[*hostAllocation]struct{}
	failures map[Op]error
	limit    uint64
}

type hostAllocation struct {
	mem []byte
}

func (a *hostAllocation) Bytes() uint64 { return uint64(len(a.mem)) }

// NewHostRuntime returns an empty host runtime without an allocation limit.
func NewHostRuntime() *HostRuntime {
	return &HostRuntime{
		live:     make(map[*hostAllocation]struct{}),
		failures: make(map[Op]error),
	}
}

func (h *HostRuntime) Name() string { return "host" }

// SetLimit caps the size of a single allocation. Zero means unlimited.
func (h *HostRuntime) SetLimit(bytes uint64) {
	h.mu.Lock()
	h.limit = bytes
	h.mu.Unlock()
}

// FailNext makes the next call of op return err.
func (h *HostRuntime) FailNext(op Op, err error) {
	h.mu.Lock()
	h.failures[op] = err
	h.mu.Unlock()
}

// Live reports how many allocations have not been freed.
func (h *HostRuntime) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// takeFailure must be called with h.mu held.
func (h *HostRuntime) takeFailure(op Op) error {
	err, ok := h.failures[op]
	if !ok {
		return nil
	}
	delete(h.failures, op)
	return err
}

func (h *HostRuntime) Malloc(bytes uint64) (Allocation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.takeFailure(OpMalloc); err != nil {
		return nil, err
	}
	if h.limit > 0 && bytes > h.limit {
		return nil, fmt.Errorf("requested %d bytes exceeds limit of %d", bytes, h.limit)
	}
	a := &hostAllocation{mem: make([]byte, bytes)}
	h.live[a] = struct{}{}
	return a, nil
}

func (h *HostRuntime) lookup(a Allocation) (*hostAllocation, error) {
	ha, ok := a.(*hostAllocation)
	if !ok {
		return nil, errForeignAllocation
	}
	if _, ok := h.live[ha]; !ok {
		return nil, errors.New("allocation already freed")
	}
	return ha, nil
}

func (h *HostRuntime) MemcpyHtoD(dst Allocation, src []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.takeFailure(OpMemcpyHtoD); err != nil {
		return err
	}
	ha, err := h.lookup(dst)
	if err != nil {
		return err
	}
	if len(src) > len(ha.mem) {
		return fmt.Errorf("copy of %d bytes into %d byte allocation", len(src), len(ha.mem))
	}
	copy(ha.mem, src)
	return nil
}

func (h *HostRuntime) MemcpyDtoH(dst []byte, src Allocation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.takeFailure(OpMemcpyDtoH); err != nil {
		return err
	}
	ha, err := h.lookup(src)
	if err != nil {
		return err
	}
	if len(dst) > len(ha.mem) {
		return fmt.Errorf("copy of %d bytes from %d byte allocation", len(dst), len(ha.mem))
	}
	copy(dst, ha.mem)
	return nil
}

// Synchronize has nothing to wait for; copies complete before returning.
func (h *HostRuntime) Synchronize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.takeFailure(OpSynchronize)
}

func (h *HostRuntime) Free(a Allocation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.takeFailure(OpFree); err != nil {
		return err
	}
	ha, err := h.lookup(a)
	if err != nil {
		return err
	}
	delete(h.live, ha)
	return nil
}
