package promo

// ShuffleEngine performs repeated uniform permutations of an entry list
type ShuffleEngine struct {
	src Source
}

// NewShuffleEngine creates a ShuffleEngine drawing from src
func NewShuffleEngine(src Source) *ShuffleEngine {
	if src == nil {
		src = NewRandomSource()
	}
	return &ShuffleEngine{src: src}
}

// Shuffle applies rounds Fisher-Yates passes to a copy of entries.
// The input slice is never modified.
func (s *ShuffleEngine) Shuffle(entries []string, rounds int) ([]string, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyEntries
	}
	if err := ValidateRounds(rounds); err != nil {
		return nil, err
	}

	working := make([]string, len(entries))
	copy(working, entries)

	for range rounds {
		s.pass(working)
	}
	return working, nil
}

// pass is one in-place Fisher-Yates round
func (s *ShuffleEngine) pass(list []string) {
	for i := len(list) - 1; i >= 1; i-- {
		j := s.src.Intn(i + 1)
		list[i], list[j] = list[j], list[i]
	}
}

// Preview returns a throwaway single-pass permutation for display frames
func (s *ShuffleEngine) Preview(entries []string) []string {
	frame := make([]string, len(entries))
	copy(frame, entries)
	s.pass(frame)
	return frame
}
