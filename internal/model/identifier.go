package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier widths.
const (
	BranchWidth = 4
	NumberWidth = 8
)

// Identifier is a normalized remito number: a 4-digit branch code and an 8-digit sequence number.
type Identifier struct {
	Branch string
	Number string
}

// String renders the identifier as BBBB-NNNNNNNN.
func (id Identifier) String() string {
	return id.Branch + "-" + id.Number
}

// IsZero reports whether the identifier is unset.
func (id Identifier) IsZero() bool {
	return id.Branch == "" && id.Number == ""
}

// Compare orders identifiers numerically by branch, then by number.
func (id Identifier) Compare(other Identifier) int {
	if c := compareDigits(id.Branch, other.Branch); c != 0 {
		return c
	}
	return compareDigits(id.Number, other.Number)
}

// Less reports whether id sorts before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// ParseIdentifier parses a canonical BBBB-NNNNNNNN string.
func ParseIdentifier(s string) (Identifier, error) {
	branch, number, ok := strings.Cut(s, "-")
	if !ok || len(branch) != BranchWidth || len(number) != NumberWidth || !isDigits(branch) || !isDigits(number) {
		return Identifier{}, fmt.Errorf("invalid identifier %q", s)
	}
	return Identifier{Branch: branch, Number: number}, nil
}

func compareDigits(a, b string) int {
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	if aErr != nil || bErr != nil {
		return strings.Compare(a, b)
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
