package settlement

import "time"

// Slot identifies a monthly billing period as year*12 + month index. The
// encoding is strictly monotonic over calendar months, so slot arithmetic is
// plain integer arithmetic.
type Slot int

// SlotAt returns the slot containing t.
func SlotAt(t time.Time) Slot {
	return Slot(t.Year()*12 + int(t.Month()))
}

// Prev returns the slot one month earlier.
func (s Slot) Prev() Slot { return s - 1 }

// Year returns the calendar year of the slot.
func (s Slot) Year() int {
	return (int(s) - 1) / 12
}

// Month returns the calendar month of the slot.
func (s Slot) Month() time.Month {
	m := int(s) % 12
	if m == 0 {
		m = 12
	}
	return time.Month(m)
}

// Clock supplies the current time. The engine takes a Clock so tests can
// settle deterministic slots.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
