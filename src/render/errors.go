package render

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	// ErrSurfaceUnavailable is returned while the drawable has a zero extent
	// (minimized window). It is transient: retry on a later tick.
	ErrSurfaceUnavailable = errors.New("render: surface unavailable")

	// ErrSurfaceCreationFailed is returned when the native surface cannot be bound.
	ErrSurfaceCreationFailed = errors.New("render: surface creation failed")

	// ErrChainConstructionFailed wraps every failure while building a Swapchain.
	ErrChainConstructionFailed = errors.New("render: swapchain construction failed")

	// ErrRenderPassIncompatible is returned when a rebuilt chain would need a
	// render pass with different attachment formats than the one it inherits.
	ErrRenderPassIncompatible = errors.New("render: render pass shape changed")

	// ErrDeviceLost is fatal. Every resource created from the device is invalid.
	ErrDeviceLost = errors.New("render: device lost")

	// ErrTimeout reports an expired fence, acquire or present wait.
	ErrTimeout = errors.New("render: wait timed out")
)

// ContractViolation is the panic value used when the orchestrator is driven
// out of order, e.g. EndFrame during a pass or BeginFrame twice.
type ContractViolation struct {
	Op  string
	Msg string
}

func (c ContractViolation) Error() string {
	return fmt.Sprintf("render: %s: %s", c.Op, c.Msg)
}

func violate(op, msg string) {
	panic(ContractViolation{Op: op, Msg: msg})
}

// chainError carries both ErrChainConstructionFailed and the step's cause so
// errors.Is matches either.
type chainError struct {
	op  string
	err error
}

func (e *chainError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrChainConstructionFailed, e.op, e.err)
}

func (e *chainError) Unwrap() []error {
	return []error{ErrChainConstructionFailed, e.err}
}

func chainFailed(op string, err error) error {
	return &chainError{op: op, err: err}
}

// IsTransient reports whether err only means "no frame this tick".
func IsTransient(err error) bool {
	return errors.Is(err, ErrSurfaceUnavailable) || errors.Is(err, ErrTimeout)
}

// IsFatal reports whether err leaves the device unusable.
func IsFatal(err error) bool {
	return err != nil && !IsTransient(err)
}

type stackFrame struct {
	file     string
	line     int
	function string
}

func newStackFrame(pc uintptr) stackFrame {
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	return stackFrame{
		file:     filepath.Base(f.File),
		line:     f.Line,
		function: f.Function,
	}
}

func (s stackFrame) String() string {
	return fmt.Sprintf("%s (%s:%d)", s.function, s.file, s.line)
}

// NewError converts a Vulkan result into an error that names the calling
// function. It returns nil for vulkan.Success.
func NewError(retVal vulkan.Result) error {
	if retVal == vulkan.Success {
		return nil
	}
	cause := vulkan.Error(retVal)
	if cause == nil {
		cause = fmt.Errorf("result %d", retVal)
	}
	switch retVal {
	case vulkan.ErrorDeviceLost:
		cause = ErrDeviceLost
	case vulkan.Timeout, vulkan.NotReady:
		cause = ErrTimeout
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return errors.Wrapf(cause, "vulkan error (%d)", retVal)
	}
	return errors.Wrapf(cause, "vulkan error (%d) on %s", retVal, newStackFrame(pc))
}

func IsError(retVal vulkan.Result) bool {
	return retVal != vulkan.Success
}

// OrPanic runs the finalizers and panics when err is non-nil.
func OrPanic(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	panic(err)
}

// CheckError recovers a panic into *err. Use it deferred.
func CheckError(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = errors.WithStack(e)
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}
