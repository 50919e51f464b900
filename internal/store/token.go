package store

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

const tokenNumberPad = 3

var tokenPattern = regexp.MustCompile(`^[A-Z]+-\d{3}$`)

// GenerateToken builds a patient-facing code from a department prefix and a
// random 3-digit sequence, left-zero-padded. Collisions past 999 per prefix
// are tolerated; uniqueness is not enforced here.
func GenerateToken(prefix string, intn func(int) int) string {
	if intn == nil {
		intn = rand.Intn
	}
	seq := intn(999) + 1
	return fmt.Sprintf("%s-%0*d", strings.ToUpper(prefix), tokenNumberPad, seq)
}

func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// TokenParts splits a token into prefix and number. The second value is the
// zero-padded numeric text, not a parsed integer, so rendering keeps padding.
func TokenParts(token string) (prefix, number string) {
	idx := strings.LastIndex(token, "-")
	if idx < 0 {
		return token, ""
	}
	return token[:idx], token[idx+1:]
}
