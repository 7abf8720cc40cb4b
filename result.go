package promo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PromotionResult is the immutable record of one completed drawing
type PromotionResult struct {
	ID         string    `json:"id"`         // Globally unique result id
	Name       string    `json:"promoName"`  // Promotion name, never blank
	Rounds     int       `json:"rounds"`     // Committed round count
	RankedList []string  `json:"rankedList"` // Final permutation of all entries
	Winners    []string  `json:"winners"`    // Prefix of RankedList, rank 1 first
	CreatedAt  time.Time `json:"timestamp"`  // UTC, millisecond precision
}

// Validate validates the structural invariants of a result
func (r *PromotionResult) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrInvalidResult.WithDetails("id cannot be empty")
	}
	if r.Rounds < 1 {
		return ErrInvalidResult.WithDetails(fmt.Sprintf("rounds must be at least 1, got %d", r.Rounds))
	}
	if len(r.Winners) < 1 || len(r.Winners) > len(r.RankedList) {
		return ErrInvalidResult.WithDetails(
			fmt.Sprintf("winner count %d out of range for %d ranked entries", len(r.Winners), len(r.RankedList)))
	}
	for i, w := range r.Winners {
		if r.RankedList[i] != w {
			return ErrInvalidResult.WithDetails(fmt.Sprintf("winner %d is not the ranked entry at the same position", i+1))
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a recorded result
func (r PromotionResult) Clone() PromotionResult {
	c := r
	c.RankedList = append([]string(nil), r.RankedList...)
	c.Winners = append([]string(nil), r.Winners...)
	return c
}

// NewUUID is the default IDGenerator
func NewUUID() string { return uuid.NewString() }

// Recorder builds PromotionResult values; it never persists them
type Recorder struct {
	ids   IDGenerator
	clock Clock
}

// NewRecorder creates a Recorder. Nil arguments fall back to uuid ids and the real clock.
func NewRecorder(ids IDGenerator, clock Clock) *Recorder {
	if ids == nil {
		ids = NewUUID
	}
	if clock == nil {
		clock = NewRealClock()
	}
	return &Recorder{ids: ids, clock: clock}
}

// Record constructs a result with a fresh id and the current timestamp.
// A blank name becomes DefaultPromoName.
func (r *Recorder) Record(name string, rounds int, ranked, winners []string) PromotionResult {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPromoName
	}

	return PromotionResult{
		ID:         r.ids(),
		Name:       name,
		Rounds:     rounds,
		RankedList: append([]string(nil), ranked...),
		Winners:    append([]string(nil), winners...),
		CreatedAt:  r.clock.Now().UTC().Truncate(time.Millisecond),
	}
}
