package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// GetCode returns the code of the outermost coded error in err's chain
func GetCode(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code.String()
	}
	return ""
}

// FormatError renders err for humans, including code and context
func FormatError(err error) string {
	var e *Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}

	parts := []string{
		fmt.Sprintf("Code: %s", e.Code),
		fmt.Sprintf("Message: %s", e.Message),
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts = append(parts, "Context:")
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, e.Context[k]))
		}
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	return strings.Join(parts, "\n")
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// IsCanceled reports whether err was caused by context cancellation or an
// expired deadline, whether or not it has been coded yet.
func IsCanceled(err error) bool {
	return HasCode(err, CommonCanceled) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

// AsError converts any error to *Error, wrapping foreign errors as common.internal
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CommonInternal, err.Error(), err)
}
