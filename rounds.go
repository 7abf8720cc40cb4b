package promo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RoundsMode selects how the round count is produced
type RoundsMode int

const (
	// ModeManual commits rounds from free-text numeric input
	ModeManual RoundsMode = iota
	// ModeDice commits rounds from the sum of a dice roll
	ModeDice
)

// String returns the mode name
func (m RoundsMode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeDice:
		return "dice"
	default:
		return "unknown"
	}
}

// DiceRoll holds the individual dice of one roll and their sum
type DiceRoll struct {
	Dice  []int `json:"dice"`
	Total int   `json:"total"`
}

// String renders the roll as "3d6 → [2 5 1] = 8"
func (r DiceRoll) String() string {
	return fmt.Sprintf("%dd%d → %v = %d", len(r.Dice), DieFaces, r.Dice, r.Total)
}

// RollDiceSum rolls n independent six-sided dice and sums them
func RollDiceSum(src Source, n int) DiceRoll {
	roll := DiceRoll{Dice: make([]int, n)}
	for i := range n {
		roll.Dice[i] = src.Intn(DieFaces) + 1
		roll.Total += roll.Dice[i]
	}
	return roll
}

// RoundDeterminer resolves the committed round count from manual input or a dice roll
type RoundDeterminer struct {
	mu sync.Mutex

	src          Source
	clock        Clock
	logger       Logger
	maxDice      int
	rollDuration time.Duration

	mode       RoundsMode
	input      string
	committed  int
	generation uint64
	rolling    bool
	lastRoll   *DiceRoll
}

// NewRoundDeterminer creates a determiner in manual mode with nothing committed
func NewRoundDeterminer(src Source, clock Clock, maxDice int, rollDuration time.Duration, logger Logger) *RoundDeterminer {
	if src == nil {
		src = NewRandomSource()
	}
	if clock == nil {
		clock = NewRealClock()
	}
	if maxDice <= 0 {
		maxDice = DefaultMaxDice
	}
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &RoundDeterminer{
		src:          src,
		clock:        clock,
		logger:       logger,
		maxDice:      maxDice,
		rollDuration: rollDuration,
		mode:         ModeManual,
	}
}

// Mode returns the current mode
func (d *RoundDeterminer) Mode() RoundsMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// MaxDice returns how many dice may be rolled at once
func (d *RoundDeterminer) MaxDice() int { return d.maxDice }

// Input returns the current text of the rounds field
func (d *RoundDeterminer) Input() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// InputDisabled reports whether manual input is locked (dice mode)
func (d *RoundDeterminer) InputDisabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode != ModeManual
}

// Rolling reports whether a dice roll is in flight
func (d *RoundDeterminer) Rolling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rolling
}

// Committed returns the committed round count, if any
func (d *RoundDeterminer) Committed() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed, d.committed > 0
}

// LastRoll returns the most recent committed dice roll
func (d *RoundDeterminer) LastRoll() (DiceRoll, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastRoll == nil {
		return DiceRoll{}, false
	}
	return DiceRoll{Dice: append([]int(nil), d.lastRoll.Dice...), Total: d.lastRoll.Total}, true
}

// SetManualInput updates the rounds field. Positive integers commit, blank input clears the
// commitment without error, anything else clears it and reports ErrInvalidRounds.
// The call is ignored while in dice mode since the field is disabled.
func (d *RoundDeterminer) SetManualInput(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeManual {
		return nil
	}

	d.input = text
	if strings.TrimSpace(text) == "" {
		d.committed = 0
		return nil
	}

	v, ok := parseLeadingInt(text)
	if !ok || v <= 0 {
		d.committed = 0
		return ErrInvalidRounds.WithDetails(fmt.Sprintf("%q is not a positive integer", text))
	}

	d.committed = v
	return nil
}

// SwitchMode changes the mode. Any in-flight roll is invalidated; the committed value is kept.
func (d *RoundDeterminer) SwitchMode(mode RoundsMode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rolling {
		d.logger.Debug("Dice roll invalidated by switch from %s to %s", d.mode, mode)
	}
	d.generation++
	d.rolling = false
	d.mode = mode
}

// Toggle flips between manual and dice mode and returns the new mode
func (d *RoundDeterminer) Toggle() RoundsMode {
	next := ModeDice
	if d.Mode() == ModeDice {
		next = ModeManual
	}
	d.SwitchMode(next)
	return next
}

// RollDice rolls n dice and, after the cosmetic roll duration, commits the total as the round
// count. A mode switch or context cancellation during the wait discards the roll.
func (d *RoundDeterminer) RollDice(ctx context.Context, n int) (DiceRoll, error) {
	if err := ValidateDiceCount(n, d.maxDice); err != nil {
		return DiceRoll{}, err
	}

	d.mu.Lock()
	if d.mode != ModeDice {
		d.mu.Unlock()
		return DiceRoll{}, ErrInvalidParameters.WithDetails("dice rolls require dice mode")
	}
	if d.rolling {
		d.mu.Unlock()
		return DiceRoll{}, ErrRollInProgress
	}
	d.rolling = true
	gen := d.generation
	d.mu.Unlock()

	roll := RollDiceSum(d.src, n)

	if d.rollDuration > 0 {
		timer := d.clock.NewTimer(d.rollDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.mu.Lock()
			if d.generation == gen {
				d.rolling = false
			}
			d.mu.Unlock()
			return DiceRoll{}, ErrRollInvalidated.WithCause(ctx.Err())
		case <-timer.C():
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != gen {
		return DiceRoll{}, ErrRollInvalidated
	}

	d.rolling = false
	d.committed = roll.Total
	d.input = strconv.Itoa(roll.Total)
	d.lastRoll = &roll

	d.logger.Info("Dice roll committed %d rounds: %s", roll.Total, roll)
	return roll, nil
}

// Reset returns to manual mode with nothing committed, invalidating any roll in flight
func (d *RoundDeterminer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	d.rolling = false
	d.mode = ModeManual
	d.input = ""
	d.committed = 0
	d.lastRoll = nil
}
