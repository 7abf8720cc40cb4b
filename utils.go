package promo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// ValidateEntryCount validates the number of parsed entries against the hard cap
func ValidateEntryCount(n, maxEntries int) error {
	if n <= 0 {
		return ErrEmptyEntries
	}
	if n > maxEntries {
		return ErrTooManyEntries.WithDetails(fmt.Sprintf("got %d entries, limit is %d", n, maxEntries))
	}
	return nil
}

// ValidateRounds validates a committed round count
func ValidateRounds(rounds int) error {
	if rounds <= 0 {
		return ErrInvalidRounds
	}
	return nil
}

// ValidateWinnerCount validates the winner count against the entry count
func ValidateWinnerCount(k, n int) error {
	if k <= 0 {
		return ErrInvalidWinnerCount.WithDetails("number of winners must be greater than 0")
	}
	if k > n {
		return ErrInvalidWinnerCount.WithDetails(
			fmt.Sprintf("number of winners (%d) cannot exceed the number of entries (%d)", k, n))
	}
	return nil
}

// ValidateDiceCount validates the number of dice for a roll
func ValidateDiceCount(n, maxDice int) error {
	if n < 1 || n > maxDice {
		return ErrInvalidDiceCount.WithDetails(fmt.Sprintf("dice count must be between 1 and %d, got %d", maxDice, n))
	}
	return nil
}

// parseLeadingInt reads an integer the way a lenient form field does: leading whitespace
// is skipped, an optional sign is accepted and parsing stops at the first non-digit.
func parseLeadingInt(text string) (int, bool) {
	i := 0
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	start := i
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		i++
	}
	digits := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, false
	}
	v, err := strconv.Atoi(text[start:i])
	if err != nil {
		return 0, false
	}
	return v, true
}

// generateLockValue generates a unique lock value using crypto/rand
func generateLockValue() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based value if crypto/rand fails
		return fmt.Sprintf("lock_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
