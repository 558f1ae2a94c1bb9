package common

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileOptional compiles a user-supplied pattern.
// An empty or blank pattern yields a nil regexp and no error.
func CompileOptional(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConfig, pattern, err)
	}
	return re, nil
}
