package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"time"
)

// Error is the coded error returned by every chprobe package
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Context   map[string]string
	Stack     []Frame
	Timestamp time.Time
}

// Frame represents a stack frame
type Frame struct {
	Function string
	File     string
	Line     int
}

// New creates an error with the given code. cause may be nil.
func New(code Code, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Stack:     captureStackTrace(),
	}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

func (e *Error) AddContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so errors.New(code, "", nil)
// works as a sentinel for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code.Equals(t.Code)
}

// HasCode reports whether any error in err's chain carries one of codes
func HasCode(err error, codes ...Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			for _, c := range codes {
				if e.Code.Equals(c) {
					return true
				}
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

func captureStackTrace() []Frame {
	var frames []Frame
	// skip captureStackTrace and the constructor
	for i := 2; i < 12; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		frames = append(frames, Frame{
			Function: name,
			File:     file,
			Line:     line,
		})
	}
	return frames
}
