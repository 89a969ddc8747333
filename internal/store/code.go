package store

import (
	"crypto/rand"
	"regexp"
	"strings"
)

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NewRoomCode returns a random six-character room code.
func NewRoomCode() string {
	buf := make([]byte, RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand is unavailable; zero bytes still map into the alphabet.
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	code := make([]byte, RoomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code)
}

// NormalizeRoomCode upper-cases a room code. Codes are stored upper-case and
// matched case-insensitively.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether the (normalized) code has the expected shape.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}
