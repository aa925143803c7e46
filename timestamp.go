package datalake

import "time"

// EpochMillisToTimeEntry decomposes an epoch-milliseconds timestamp into a
// TimeEntry. The instant is truncated to whole seconds (floor division by
// 1000) and broken down in UTC. Week is the ISO 8601 week of the year and
// weekday runs from 1 (Sunday) to 7 (Saturday).
func EpochMillisToTimeEntry(ms int64) TimeEntry {
	sec := ms / 1000
	if ms%1000 < 0 {
		sec--
	}
	t := time.Unix(sec, 0).UTC()
	_, week := t.ISOWeek()
	return TimeEntry{
		StartTime: sec * 1000,
		Hour:      int32(t.Hour()),
		Day:       int32(t.Day()),
		Week:      int32(week),
		Month:     int32(t.Month()),
		Year:      int32(t.Year()),
		Weekday:   int32(t.Weekday()) + 1,
	}
}
