package compute

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

// Kind categorizes failures of the compute engine.
type Kind int

const (
	// KindInitialization covers device, extension, feature and API version problems.
	KindInitialization Kind = iota
	// KindMemoryType means no memory type satisfies a buffer's requirements.
	KindMemoryType
	// KindResourceCreation means the driver rejected the creation of an object.
	KindResourceCreation
	// KindCommandExecution covers begin/end/submit/wait/query readback failures.
	KindCommandExecution
	// KindContractViolation means a caller or configuration broke an engine precondition.
	KindContractViolation
)

// String returns the kind as a string
func (k Kind) String() string {
	switch k {
	case KindInitialization:
		return "InitializationFailure"
	case KindMemoryType:
		return "MemoryTypeUnavailable"
	case KindResourceCreation:
		return "ResourceCreationFailure"
	case KindCommandExecution:
		return "CommandExecutionFailure"
	case KindContractViolation:
		return "ContractViolation"
	default:
		return "Unknown"
	}
}

var (
	// ErrNoSuitableDevice is returned when no physical device passes the suitability checks.
	ErrNoSuitableDevice = errors.New("no suitable device")
	// ErrNoComputeQueue is returned when the selected device exposes no compute queue family.
	ErrNoComputeQueue = errors.New("no compute queue family")
	// ErrNoCompatibleMemoryType is returned when no memory type matches both the
	// requirement mask and the requested property flags.
	ErrNoCompatibleMemoryType = errors.New("no compatible memory type")
	// ErrShaderLoad is returned when the shader artifact is unreadable or malformed.
	ErrShaderLoad = errors.New("shader load failure")
	// ErrClosed is returned by operations on an engine after Close.
	ErrClosed = errors.New("engine is closed")
)

// Error is a failure of one named stage of the engine.
type Error struct {
	Kind Kind
	Op   string // stage that failed, e.g. "create buffer"
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ResultError is a non-success Vulkan result code.
type ResultError struct {
	Result vk.Result
}

func (e ResultError) Error() string {
	return fmt.Sprintf("vulkan error: %s (%d)", vk.Error(e.Result).Error(), e.Result)
}

// resultError converts a Vulkan result into an *Error for the given stage,
// or nil on success.
func resultError(kind Kind, op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return newError(kind, op, ResultError{Result: ret})
}
