package fake

import (
	"strconv"
	"time"

	"github.com/sparkify/datalake/fake/gen"
)

// LogEvent is one user activity log record. Fields a logged out visitor
// doesn't have are omitted, and artist, song and length are null on every
// page but NextSong.
type LogEvent struct {
	Artist        *string  `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName,omitempty"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      string   `json:"location,omitempty"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  int64    `json:"registration,omitempty"`
	SessionID     int64    `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        int      `json:"status"`
	TS            int64    `json:"ts"`
	UserAgent     string   `json:"userAgent"`
	UserID        string   `json:"userId"`
}

type user struct {
	id        string
	firstName string
	lastName  string
	gender    string
	level     string
	location  string
	userAgent string
	reg       int64
}

// EventGenerator generates sessions of log events. Most pages in a session
// are song plays; a fraction of plays name a song which isn't in the
// catalog.
type EventGenerator struct {
	g       *gen.Generator
	catalog []*Song
	users   []*user
	unknown float64
	start   time.Time
	session int64
	pending []*LogEvent
}

// NewEventGenerator returns an EventGenerator whose plays pick from catalog.
// unknown is the fraction of plays of songs not in the catalog. Timestamps
// start at start and only go forward.
func NewEventGenerator(seed int64, catalog []*Song, users int, unknown float64, start time.Time) *EventGenerator {
	if users < 1 {
		users = 1
	}
	e := &EventGenerator{
		g:       gen.NewGenerator(seed),
		catalog: catalog,
		unknown: unknown,
		start:   start,
	}
	for i := 0; i < users; i++ {
		e.users = append(e.users, e.genUser(i))
	}
	return e
}

func (e *EventGenerator) genUser(i int) *user {
	u := &user{
		id:        strconv.Itoa(i + 2),
		firstName: e.g.Pick(firstNames),
		lastName:  e.g.Pick(lastNames),
		gender:    e.g.Pick([]string{"F", "M"}),
		level:     "free",
		location:  e.g.Pick(userLocations),
		userAgent: e.g.Pick(userAgents),
		reg:       e.start.Add(-time.Duration(e.g.Intn(90*24))*time.Hour).UnixNano() / int64(time.Millisecond),
	}
	if e.g.Chance(0.3) {
		u.level = "paid"
	}
	return u
}

// Event returns the next event.
func (e *EventGenerator) Event() *LogEvent {
	for len(e.pending) == 0 {
		e.pending = e.genSession()
	}
	ev := e.pending[0]
	e.pending = e.pending[1:]
	return ev
}

func (e *EventGenerator) genSession() []*LogEvent {
	e.session++
	if e.g.Chance(0.1) {
		return e.genGuestSession()
	}
	u := e.users[e.g.Uint64(len(e.users))]
	// free users sometimes upgrade, giving them a second level
	if u.level == "free" && e.g.Chance(0.05) {
		u.level = "paid"
	}
	var evs []*LogEvent
	add := func(page string, status int) *LogEvent {
		ev := &LogEvent{
			Auth:          "Logged In",
			FirstName:     u.firstName,
			Gender:        u.gender,
			ItemInSession: len(evs),
			LastName:      u.lastName,
			Level:         u.level,
			Location:      u.location,
			Method:        "GET",
			Page:          page,
			Registration:  u.reg,
			SessionID:     e.session,
			Status:        status,
			TS:            e.now(),
			UserAgent:     u.userAgent,
			UserID:        u.id,
		}
		evs = append(evs, ev)
		return ev
	}
	add("Home", 200)
	for n := 1 + e.g.Intn(12); n > 0; n-- {
		if e.g.Chance(0.15) {
			add(e.g.Pick(otherPages), 200)
			continue
		}
		ev := add("NextSong", 200)
		ev.Method = "PUT"
		ev.Artist, ev.Song, ev.Length = e.pickSong()
	}
	if e.g.Chance(0.3) {
		add("Logout", 307).Method = "PUT"
	}
	return evs
}

func (e *EventGenerator) genGuestSession() []*LogEvent {
	var evs []*LogEvent
	for _, page := range []string{"Home", "Login"} {
		evs = append(evs, &LogEvent{
			Auth:          "Logged Out",
			ItemInSession: len(evs),
			Level:         "free",
			Method:        "GET",
			Page:          page,
			SessionID:     e.session,
			Status:        200,
			TS:            e.now(),
			UserAgent:     e.g.Pick(userAgents),
		})
	}
	return evs
}

func (e *EventGenerator) pickSong() (artist, song *string, length *float64) {
	if len(e.catalog) == 0 || e.g.Chance(e.unknown) {
		a := "Unknown " + e.g.Pick(artistNouns)
		s := e.g.Pick(titleWords) + " Unreleased"
		l := round(60+e.g.Float64()*300, 5)
		return &a, &s, &l
	}
	s := e.catalog[e.g.Uint64(len(e.catalog))]
	return &s.ArtistName, &s.Title, &s.Duration
}

func (e *EventGenerator) now() int64 {
	return e.g.Time(e.start, 5*time.Minute).UnixNano() / int64(time.Millisecond)
}

var firstNames = []string{"Jacqueline", "Lily", "Kaylee", "Chloe", "Tegan", "Jacob", "Ryan", "Mohammad", "Aleena", "Matthew", "Layla", "Kate"}

var lastNames = []string{"Lynch", "Koch", "Summers", "Cuevas", "Levine", "Klein", "Smith", "Rodriguez", "Kirby", "Jones", "Griffin", "Harrell"}

var userLocations = []string{
	"Atlanta-Sandy Springs-Roswell, GA",
	"Chicago-Naperville-Elgin, IL-IN-WI",
	"San Francisco-Oakland-Hayward, CA",
	"Portland-South Portland, ME",
	"Lansing-East Lansing, MI",
	"New York-Newark-Jersey City, NY-NJ-PA",
}

var userAgents = []string{
	`"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/36.0.1985.143 Safari/537.36"`,
	`"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/36.0.1985.143 Safari/537.36"`,
	`Mozilla/5.0 (X11; Linux x86_64; rv:31.0) Gecko/20100101 Firefox/31.0`,
	`"Mozilla/5.0 (iPhone; CPU iPhone OS 7_1_2 like Mac OS X) AppleWebKit/537.51.2 (KHTML, like Gecko) Version/7.0 Mobile/11D257 Safari/9537.53"`,
}

var otherPages = []string{"Settings", "Help", "About", "Add to Playlist", "Thumbs Up", "Thumbs Down", "Upgrade", "Downgrade"}
