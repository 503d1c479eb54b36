package utils

import (
	"sort"
	"time"
)

// KST is the Korea Standard Time location (UTC+9), the reporting timezone.
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// DefaultScheduleHours are the KST hours at which a new slot begins.
var DefaultScheduleHours = []int{0, 8, 12, 16, 20}

// SlotLabelLayout renders a slot as a filename-safe discriminator.
const SlotLabelLayout = "2006-01-02T15"

// Slot is a schedule boundary in KST.
type Slot struct {
	Time      time.Time `json:"-"`
	Timestamp string    `json:"timestamp"` // RFC 3339 with the +09:00 offset
	Label     string    `json:"label"`     // filename-safe, e.g. "2026-10-17T12"
}

// NowKST returns the current time in KST.
func NowKST() time.Time {
	return time.Now().In(KST)
}

// AlignSlot snaps now down to the latest schedule boundary at or before it.
// The conversion to KST happens before flooring, so the chosen hour is always
// the KST wall-clock hour. When the current hour precedes every entry the
// previous day's last boundary is used.
func AlignSlot(now time.Time, hours []int) Slot {
	hs := normalizeHours(hours)
	local := now.In(KST)

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, KST)
	chosen := -1
	for _, h := range hs {
		if h <= local.Hour() {
			chosen = h
		}
	}

	var t time.Time
	if chosen < 0 {
		t = day.AddDate(0, 0, -1).Add(time.Duration(hs[len(hs)-1]) * time.Hour)
	} else {
		t = day.Add(time.Duration(chosen) * time.Hour)
	}
	return newSlot(t)
}

// NextSlot returns the first schedule boundary strictly after now.
func NextSlot(now time.Time, hours []int) Slot {
	hs := normalizeHours(hours)
	local := now.In(KST)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, KST)

	for _, h := range hs {
		t := day.Add(time.Duration(h) * time.Hour)
		if t.After(local) {
			return newSlot(t)
		}
	}
	return newSlot(day.AddDate(0, 0, 1).Add(time.Duration(hs[0]) * time.Hour))
}

// ParseSlotLabel parses a label produced by AlignSlot back into a Slot.
func ParseSlotLabel(label string) (Slot, error) {
	t, err := time.ParseInLocation(SlotLabelLayout, label, KST)
	if err != nil {
		return Slot{}, err
	}
	return newSlot(t), nil
}

// FormatDateTimeKST formats a time.Time to "2006-01-02 15:04:05 KST".
func FormatDateTimeKST(t time.Time) string {
	return t.In(KST).Format("2006-01-02 15:04:05 KST")
}

func newSlot(t time.Time) Slot {
	return Slot{
		Time:      t,
		Timestamp: t.Format(time.RFC3339),
		Label:     t.Format(SlotLabelLayout),
	}
}

// normalizeHours returns a sorted, deduplicated copy of hours restricted to
// [0,23], falling back to DefaultScheduleHours when nothing valid remains.
func normalizeHours(hours []int) []int {
	seen := make(map[int]bool, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	if len(out) == 0 {
		out = append(out, DefaultScheduleHours...)
	}
	sort.Ints(out)
	return out
}
