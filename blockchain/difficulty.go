package blockchain

import "strings"

// DefaultDifficulty is the number of leading zero hex characters a mined
// block hash must carry. Every additional character multiplies the expected
// search work by 16.
const DefaultDifficulty = 3

// MaxDifficulty is the longest prefix a block hash can carry: a sha-256
// digest spans 64 hex characters, so anything above is unsatisfiable.
const MaxDifficulty = 64

// DifficultyPrefix returns the prefix a hash must start with at the given
// difficulty. Mining loops should call it once and keep the result.
func DifficultyPrefix(difficulty int) string {
	if difficulty <= 0 {
		return ""
	}
	return strings.Repeat("0", difficulty)
}

// MeetsDifficulty reports whether the hex hash satisfies the difficulty.
// Difficulty 0 or less accepts everything.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.HasPrefix(hash, DifficultyPrefix(difficulty))
}
