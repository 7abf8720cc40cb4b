package promo

// SelectWinners returns the first k entries of the final permutation.
// Rank 1 (index 0) is the top prize.
func SelectWinners(ranked []string, k int) ([]string, error) {
	if err := ValidateWinnerCount(k, len(ranked)); err != nil {
		return nil, err
	}

	winners := make([]string, k)
	copy(winners, ranked[:k])
	return winners, nil
}
