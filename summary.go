package promo

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the long en-US date-time layout used in summaries
const TimestampLayout = "January 2, 2006 at 3:04:05 PM"

// FormatTimestamp renders t in local time using TimestampLayout
func FormatTimestamp(t time.Time) string {
	return FormatTimestampIn(t, time.Local)
}

// FormatTimestampIn renders t in loc using TimestampLayout
func FormatTimestampIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimestampLayout)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultPromoName
	}
	return name
}

// FormatSummary renders the result page: header, winners and the full ranked list
func FormatSummary(r PromotionResult, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Promotion Results\n")
	fmt.Fprintf(&b, "Summary for: %s\n", displayName(r.Name))
	fmt.Fprintf(&b, "Completed: %s\n", FormatTimestampIn(r.CreatedAt, loc))
	fmt.Fprintf(&b, "Rounds of Shuffling: %d\n", r.Rounds)

	if len(r.Winners) == 1 {
		fmt.Fprintf(&b, "\nWinner: %s\n", r.Winners[0])
	} else {
		fmt.Fprintf(&b, "\nWinners (%d):\n", len(r.Winners))
		for i, w := range r.Winners {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, w)
		}
	}

	fmt.Fprintf(&b, "\nFinal Ranked List (Winner at Top):\n")
	width := len(fmt.Sprint(len(r.RankedList)))
	for i, entry := range r.RankedList {
		fmt.Fprintf(&b, "%*d. %s", width, i+1, entry)
		if i < len(r.Winners) {
			b.WriteString(" (Winner!)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatHistoryLine renders one compact history row:
// name, completion time, rounds, and the top winner with the count of the rest
func FormatHistoryLine(r PromotionResult, loc *time.Location) string {
	winner := "N/A"
	if len(r.Winners) > 0 {
		winner = r.Winners[0]
		if more := len(r.Winners) - 1; more > 0 {
			winner = fmt.Sprintf("%s (+%d more)", winner, more)
		}
	}
	return fmt.Sprintf("%s | Completed: %s | Rounds: %d | Winner: %s",
		displayName(r.Name), FormatTimestampIn(r.CreatedAt, loc), r.Rounds, winner)
}
