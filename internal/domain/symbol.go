package domain

import (
	"regexp"
	"strings"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NormalizeSymbol trims and upper-cases a ticker symbol and validates its shape.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return "", &ValidationError{Message: "symbol is required"}
	}
	if !symbolRegex.MatchString(sym) {
		return "", &ValidationError{Message: "symbol must match ^[A-Z][A-Z0-9.-]{0,9}$"}
	}
	return sym, nil
}
