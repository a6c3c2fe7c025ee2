package protocol

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// CodeAlphabet leaves out I and O so codes cannot be confused with 1 and 0.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"

const CodeLength = 4

var ErrInvalidRoomCode = errors.New("room code must be exactly 4 characters")

// NormalizeRoomCode trims and upper-cases a user supplied code and rejects
// anything that is not exactly CodeLength characters long.
func NormalizeRoomCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len([]rune(c)) != CodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}
	return c, nil
}

// RandomRoomCode draws CodeLength characters from CodeAlphabet.
func RandomRoomCode(rng *rand.Rand) string {
	var sb strings.Builder
	sb.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		sb.WriteByte(CodeAlphabet[rng.IntN(len(CodeAlphabet))])
	}
	return sb.String()
}
