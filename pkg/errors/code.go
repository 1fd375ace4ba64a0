package errors

import (
	"fmt"
	"regexp"
	"strings"
)

// Code is a validated error code in "package.name" form
type Code struct {
	value string
}

// Codes shared by every package
var (
	CommonInternal = MustNewCode("common.internal")
	CommonCanceled = MustNewCode("common.canceled")
)

var codeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// NewCode creates a new validated Code
func NewCode(s string) (Code, error) {
	if !codeRegex.MatchString(s) {
		return Code{}, fmt.Errorf("invalid code format '%s': must be 'package.name' (lowercase, underscores, dots only)", s)
	}

	// the kind is carried by the code itself
	if strings.Contains(s, "error") || strings.Contains(s, "err") {
		return Code{}, fmt.Errorf("invalid code '%s': should not contain 'error' or 'err'", s)
	}

	return Code{value: s}, nil
}

// MustNewCode creates a new Code or panics if invalid
func MustNewCode(s string) Code {
	code, err := NewCode(s)
	if err != nil {
		panic(err)
	}
	return code
}

func (c Code) String() string {
	return c.value
}

func (c Code) Equals(other Code) bool {
	return c.value == other.value
}
