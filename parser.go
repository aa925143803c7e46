package datalake

import (
	"math"
	"strconv"
	"strings"
)

// PageNextSong is the page value of events which record a song being played.
const PageNextSong = "NextSong"

// CatalogRecord is one entry of the song catalog.
type CatalogRecord struct {
	SongID          string
	Title           string
	ArtistID        string
	Year            int32
	Duration        float64
	ArtistName      string
	ArtistLocation  *string
	ArtistLatitude  *float64
	ArtistLongitude *float64
}

// Event is one entry of the user activity log. TS is in epoch milliseconds and
// is only guaranteed to be valid for NextSong events.
type Event struct {
	Page      string
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
	TS        int64
	Artist    string
	Song      string
	SessionID int64
	Location  string
	UserAgent string
}

// IsPlay reports whether the event records a song play.
func (e *Event) IsPlay() bool {
	return e.Page == PageNextSong
}

// ParseCatalogRecord turns a decoded JSON catalog record into a
// CatalogRecord. song_id and artist_id are required since they key the
// dimension tables; every other field is optional.
func ParseCatalogRecord(rec interface{}) (*CatalogRecord, error) {
	m, ok := rec.(map[string]interface{})
	if !ok {
		return nil, malformed("", "expected a JSON object, got %T", rec)
	}
	var err error
	cr := &CatalogRecord{}
	if cr.SongID, err = requiredString(m, "song_id"); err != nil {
		return nil, err
	}
	if cr.ArtistID, err = requiredString(m, "artist_id"); err != nil {
		return nil, err
	}
	cr.Title, _ = stringField(m, "title")
	cr.ArtistName, _ = stringField(m, "artist_name")
	if year, ok, err := intField(m, "year"); err != nil {
		return nil, err
	} else if ok {
		if year > math.MaxInt32 || year < math.MinInt32 {
			return nil, malformed("year", "out of range: %d", year)
		}
		cr.Year = int32(year)
	}
	if dur, err := floatField(m, "duration"); err != nil {
		return nil, err
	} else if dur != nil {
		cr.Duration = *dur
	}
	if loc, ok := stringField(m, "artist_location"); ok {
		cr.ArtistLocation = &loc
	}
	if cr.ArtistLatitude, err = floatField(m, "artist_latitude"); err != nil {
		return nil, err
	}
	if cr.ArtistLongitude, err = floatField(m, "artist_longitude"); err != nil {
		return nil, err
	}
	return cr, nil
}

// ParseEvent turns a decoded JSON log record into an Event. Only page is
// required of every event. Play events additionally need a parseable ts and
// a userId, otherwise they could not be placed in time or attributed.
func ParseEvent(rec interface{}) (*Event, error) {
	m, ok := rec.(map[string]interface{})
	if !ok {
		return nil, malformed("", "expected a JSON object, got %T", rec)
	}
	var err error
	ev := &Event{}
	if ev.Page, err = requiredString(m, "page"); err != nil {
		return nil, err
	}
	if !ev.IsPlay() {
		return ev, nil
	}
	if ev.UserID, err = requiredString(m, "userId"); err != nil {
		return nil, err
	}
	ts, ok, err := intField(m, "ts")
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, malformed("ts", "is missing")
	}
	ev.TS = ts
	ev.FirstName, _ = stringField(m, "firstName")
	ev.LastName, _ = stringField(m, "lastName")
	ev.Gender, _ = stringField(m, "gender")
	ev.Level, _ = stringField(m, "level")
	ev.Artist, _ = stringField(m, "artist")
	ev.Song, _ = stringField(m, "song")
	ev.Location, _ = stringField(m, "location")
	ev.UserAgent, _ = stringField(m, "userAgent")
	if sid, ok, err := intField(m, "sessionId"); err != nil {
		return nil, err
	} else if ok {
		ev.SessionID = sid
	}
	return ev, nil
}

// number is satisfied by the json.Number types of both encoding/json and
// goccy/go-json.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func requiredString(m map[string]interface{}, key string) (string, error) {
	s, ok := stringField(m, key)
	if !ok || s == "" {
		return "", malformed(key, "is missing")
	}
	return s, nil
}

// stringField returns the value at key as a string. Numbers are formatted
// since ids such as userId show up as either.
func stringField(m map[string]interface{}, key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		return v, true
	case number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	}
	return "", false
}

// intField returns the value at key as an int64. ok is false if the key is
// absent, null or an empty string.
func intField(m map[string]interface{}, key string) (val int64, ok bool, err error) {
	switch v := m[key].(type) {
	case nil:
		return 0, false, nil
	case number:
		val, err = v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return 0, false, malformed(key, "is not an integer: %s", v.String())
			}
			val = int64(f)
		}
		return val, true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, malformed(key, "is not an integer: %v", v)
		}
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		val, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false, malformed(key, "is not an integer: '%s'", v)
		}
		return val, true, nil
	default:
		return 0, false, malformed(key, "has unexpected type %T", v)
	}
}

// floatField returns the value at key as a float64, or nil if it is absent,
// null or an empty string.
func floatField(m map[string]interface{}, key string) (*float64, error) {
	var f float64
	var err error
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case number:
		f, err = v.Float64()
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return nil, malformed(key, "has unexpected type %T", v)
	}
	if err != nil {
		return nil, malformed(key, "is not a number: %v", m[key])
	}
	return &f, nil
}
