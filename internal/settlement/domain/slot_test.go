package settlement

import (
	"testing"
	"time"
)

func TestSlotAt(t *testing.T) {
	cases := []struct {
		at   time.Time
		want Slot
	}{
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), Slot(2025*12 + 1)},
		{time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC), Slot(2025*12 + 12)},
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), Slot(2026*12 + 1)},
	}
	for _, tc := range cases {
		if got := SlotAt(tc.at); got != tc.want {
			t.Fatalf("SlotAt(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}
}

func TestSlot_PrevCrossesYearBoundary(t *testing.T) {
	january := SlotAt(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC))
	december := SlotAt(time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC))
	if january.Prev() != december {
		t.Fatalf("Prev of January slot = %d, want December slot %d", january.Prev(), december)
	}
}

func TestSlot_YearMonthRoundTrip(t *testing.T) {
	for year := 2024; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			slot := SlotAt(time.Date(year, month, 10, 12, 0, 0, 0, time.UTC))
			if slot.Year() != year || slot.Month() != month {
				t.Fatalf("slot %d decodes to %d-%d, want %d-%d", slot, slot.Year(), slot.Month(), year, month)
			}
		}
	}
}
