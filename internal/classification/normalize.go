// Package classification recovers remito identifiers from page text.
package classification

import (
	"strings"

	"github.com/Veraticus/remitos/internal/model"
)

// minBareDigits is the shortest dash-less digit run accepted as an identifier.
const minBareDigits = model.BranchWidth + model.NumberWidth

// Normalize canonicalizes a raw candidate into a fixed-width identifier.
// It returns false when the candidate cannot be read as branch and number.
//
// Every character other than digits and '-' is dropped. A dashed candidate is
// split into branch and number on its single dash, either side possibly
// empty; a dash-less one needs at least 12 digits, the last 8 being the
// number. Both parts are then left-padded with zeros and truncated to their
// rightmost digits.
func Normalize(raw string) (model.Identifier, bool) {
	s := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, raw)

	var branch, number string
	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 2 {
			return model.Identifier{}, false
		}
		branch, number = parts[0], parts[1]
	} else {
		if len(s) < minBareDigits {
			return model.Identifier{}, false
		}
		branch, number = s[:len(s)-model.NumberWidth], s[len(s)-model.NumberWidth:]
	}

	return model.Identifier{
		Branch: fitRight(branch, model.BranchWidth),
		Number: fitRight(number, model.NumberWidth),
	}, true
}

// fitRight left-pads s with zeros to width and keeps its rightmost width characters.
func fitRight(s string, width int) string {
	if len(s) < width {
		return strings.Repeat("0", width-len(s)) + s
	}
	return s[len(s)-width:]
}
