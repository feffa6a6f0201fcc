package busday_test

import (
	"testing"
	"time"

	"github.com/facumancuso/minoil/internal/busday"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInclusive(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"same weekday", day(2025, time.January, 6), day(2025, time.January, 6), 1},
		{"same saturday", day(2025, time.January, 4), day(2025, time.January, 4), 0},
		{"monday to friday", day(2025, time.January, 6), day(2025, time.January, 10), 5},
		{"full week spans weekend", day(2025, time.January, 6), day(2025, time.January, 13), 6},
		{"weekend only", day(2025, time.January, 4), day(2025, time.January, 5), 0},
		{"start after end", day(2025, time.January, 10), day(2025, time.January, 6), 0},
		{"time of day ignored", day(2025, time.January, 6).Add(23 * time.Hour), day(2025, time.January, 7).Add(time.Minute), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := busday.Inclusive(tc.start, tc.end); got != tc.want {
				t.Fatalf("Inclusive(%v, %v) = %d, want %d", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestManHours(t *testing.T) {
	// Teardown 2025-01-08 through 2025-01-10 with 2 mechanics.
	days := busday.Inclusive(day(2025, time.January, 8), day(2025, time.January, 10))
	if days != 3 {
		t.Fatalf("expected 3 business days, got %d", days)
	}
	if got := busday.ManHours(days, 2); got != 48 {
		t.Fatalf("ManHours(3, 2) = %d, want 48", got)
	}
	if got := busday.ManHours(5, 0); got != 0 {
		t.Fatalf("ManHours with no mechanics = %d, want 0", got)
	}
	if got := busday.ManHours(-1, 2); got != 0 {
		t.Fatalf("ManHours with negative days = %d, want 0", got)
	}
}
