package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrNoGPU is returned when no usable adapter could be initialized.
var ErrNoGPU = errors.New("gpu unavailable")

// Op names the runtime call that failed.
type Op string

const (
	OpInit        Op = "init"
	OpMalloc      Op = "malloc"
	OpMemcpyHtoD  Op = "memcpy_htod"
	OpMemcpyDtoH  Op = "memcpy_dtoh"
	OpSynchronize Op = "synchronize"
	OpFree        Op = "free"
)

// Kind categorizes the error
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindAllocation  Kind = "allocation"
	KindCopy        Kind = "copy"
	KindSync        Kind = "sync"
	KindFree        Kind = "free"
	KindReleased    Kind = "released"
)

// Error is the status of a failed runtime call.
type Error struct {
	Op    Op
	Kind  Kind
	Bytes uint64
	Err   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("gpu ")
	sb.WriteString(string(e.Op))
	if e.Bytes > 0 {
		fmt.Fprintf(&sb, " (%d bytes)", e.Bytes)
	}
	sb.WriteString(": ")
	sb.WriteString(string(e.Kind))
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Op and Kind, ignoring size and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Kind == "" || t.Kind == e.Kind)
}

func kindOf(op Op) Kind {
	switch op {
	case OpInit:
		return KindUnavailable
	case OpMalloc:
		return KindAllocation
	case OpSynchronize:
		return KindSync
	case OpFree:
		return KindFree
	default:
		return KindCopy
	}
}

// CheckFunc decides what happens to a failed runtime call. It receives the
// structured error and returns what the caller will see; it may also panic.
// A nil return does not turn the failure into success: the unmodified error
// is reported instead.
type CheckFunc func(err *Error) error

// LogAndReturn logs the failure and passes it through unchanged.
func LogAndReturn(err *Error) error {
	Logger().Error("gpu runtime call failed",
		zap.String("op", string(err.Op)),
		zap.String("kind", string(err.Kind)),
		zap.Uint64("bytes", err.Bytes),
		zap.Error(err.Err),
	)
	return err
}

var (
	checkMu sync.RWMutex
	checkFn CheckFunc = LogAndReturn
)

// SetCheck installs the policy applied to every failed runtime call and
// returns the previous one. A nil fn restores LogAndReturn.
func SetCheck(fn CheckFunc) CheckFunc {
	if fn == nil {
		fn = LogAndReturn
	}
	checkMu.Lock()
	defer checkMu.Unlock()
	prev := checkFn
	checkFn = fn
	return prev
}

// check forwards a runtime status to the installed policy. nil passes.
func check(op Op, bytes uint64, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if !errors.As(err, &ge) {
		ge = &Error{Op: op, Kind: kindOf(op), Bytes: bytes, Err: err}
	}
	checkMu.RLock()
	fn := checkFn
	checkMu.RUnlock()
	if out := fn(ge); out != nil {
		return out
	}
	return ge
}
