package datalake

import (
	"context"

	"github.com/pkg/errors"
)

// Play is a NextSong event enriched with its decomposed start time.
type Play struct {
	*Event
	Time TimeEntry
}

// EventCounts tallies what happened to the records of the event log.
type EventCounts struct {
	Records   int64
	Malformed int64
	Filtered  int64
}

// ReadPlays reads every record from src and keeps the song plays. Other page
// types are discarded and counted as filtered; records which can't be parsed
// are counted as malformed.
func ReadPlays(ctx context.Context, src Source, log Logger) (plays []*Event, counts EventCounts, err error) {
	var events []*Event
	counts.Malformed, err = drain(ctx, src, log, func(rec interface{}) error {
		counts.Records++
		ev, err := ParseEvent(rec)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, counts, errors.Wrap(err, "reading events")
	}
	plays = FilterPlays(events)
	counts.Filtered = int64(len(events) - len(plays))
	return plays, counts, nil
}

// FilterPlays returns the events whose page is NextSong, in order.
func FilterPlays(events []*Event) []*Event {
	plays := make([]*Event, 0, len(events))
	for _, ev := range events {
		if ev.IsPlay() {
			plays = append(plays, ev)
		}
	}
	return plays
}

// ExtractUsers projects plays into the users table. Rows are unique on
// (user_id, level), so a user who changed subscription level has one row per
// level; the first play seen for each pair supplies the row.
func ExtractUsers(plays []*Event, seen KeySet) (*Table, error) {
	t := NewTable(TableUsers, new(User))
	for _, ev := range plays {
		isNew, err := seen.Add(compositeKey(ev.UserID, ev.Level))
		if err != nil {
			return nil, errors.Wrap(err, "deduplicating users")
		}
		if !isNew {
			continue
		}
		t.Append(User{
			UserID:    ev.UserID,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
			Gender:    ev.Gender,
			Level:     ev.Level,
		})
	}
	return t, nil
}

// Enrich attaches the decomposed start time to each play.
func Enrich(plays []*Event) []*Play {
	out := make([]*Play, len(plays))
	for i, ev := range plays {
		out[i] = &Play{Event: ev, Time: EpochMillisToTimeEntry(ev.TS)}
	}
	return out
}

// ExtractTime builds the time table from enriched plays, one row per distinct
// start time, partitioned by year and month.
func ExtractTime(plays []*Play, seen KeySet) (*Table, error) {
	t := NewTable(TableTime, new(TimeEntry), "year", "month")
	for _, p := range plays {
		isNew, err := seen.Add(timeKey(p.Time.StartTime))
		if err != nil {
			return nil, errors.Wrap(err, "deduplicating start times")
		}
		if isNew {
			t.Append(p.Time)
		}
	}
	return t, nil
}

func timeKey(ms int64) string {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(ms)
		ms >>= 8
	}
	return string(b[:])
}
