package parse

import (
	"fmt"
	"regexp"
	"strings"
)

const maxPlateLen = 16

var (
	plateCharsRe = regexp.MustCompile(`^[A-Z0-9]+$`)
	// ABC1234 (pre-2018) and ABC1D23 (Mercosul).
	standardPlateRe = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)
	plateStripper   = strings.NewReplacer("-", "", " ", "")
)

// Plate normalizes a license plate: upper case, no dashes or spaces.
func Plate(raw string) (string, error) {
	p := plateStripper.Replace(strings.ToUpper(strings.TrimSpace(raw)))
	if p == "" {
		return "", fmt.Errorf("license plate is required")
	}
	if len(p) > maxPlateLen || !plateCharsRe.MatchString(p) {
		return "", fmt.Errorf("invalid license plate %q", raw)
	}
	return p, nil
}

// IsStandardPlate reports whether a normalized plate follows the Brazilian
// old or Mercosul layout. Other plates are accepted but worth a log line.
func IsStandardPlate(p string) bool {
	return standardPlateRe.MatchString(p)
}
