package fake

import (
	"math"

	"github.com/sparkify/datalake/fake/gen"
)

// Song is one song catalog record, shaped like the files of the Million Song
// Dataset subset the pipeline is built for.
type Song struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`

	// TrackID names the file the record is written to.
	TrackID string `json:"-"`
}

type artist struct {
	id        string
	name      string
	location  string
	latitude  *float64
	longitude *float64
}

// CatalogGenerator generates song catalog records over a fixed set of
// artists. A few artists get most of the songs.
type CatalogGenerator struct {
	g       *gen.Generator
	artists []*artist
}

// NewCatalogGenerator returns a CatalogGenerator with the given number of
// artists.
func NewCatalogGenerator(seed int64, artists int) *CatalogGenerator {
	if artists < 1 {
		artists = 1
	}
	c := &CatalogGenerator{g: gen.NewGenerator(seed)}
	for i := 0; i < artists; i++ {
		c.artists = append(c.artists, c.genArtist(uint64(i)))
	}
	return c
}

func (c *CatalogGenerator) genArtist(n uint64) *artist {
	a := &artist{
		id:   "AR" + c.g.ID(16, n|1<<40),
		name: c.g.Pick(artistAdjectives) + " " + c.g.Pick(artistNouns),
	}
	if c.g.Chance(0.6) {
		a.location = c.g.Pick(locations)
	}
	if c.g.Chance(0.4) {
		lat := round(c.g.Float64()*180-90, 5)
		lon := round(c.g.Float64()*360-180, 5)
		a.latitude, a.longitude = &lat, &lon
	}
	return a
}

// Song returns the n'th song. Song ids are unique per n. Titles are not, and
// neither are (artist, title) pairs.
func (c *CatalogGenerator) Song(n uint64) *Song {
	a := c.artists[c.g.Uint64(len(c.artists))]
	s := &Song{
		NumSongs:        1,
		ArtistID:        a.id,
		ArtistLatitude:  a.latitude,
		ArtistLongitude: a.longitude,
		ArtistLocation:  a.location,
		ArtistName:      a.name,
		SongID:          "SO" + c.g.ID(16, n),
		TrackID:         "TR" + c.g.ID(16, n|1<<41),
		Title:           c.g.Pick(titleWords) + " " + c.g.Pick(titleWords),
		Duration:        round(60+c.g.Float64()*340, 5),
	}
	// about half the catalog has no year
	if c.g.Chance(0.5) {
		s.Year = 1960 + c.g.Intn(51)
	}
	return s
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

var artistAdjectives = []string{"Velvet", "Electric", "Silent", "Broken", "Golden", "Midnight", "Wild", "Lonely", "Crystal", "Rusty", "Neon", "Hollow"}

var artistNouns = []string{"Harbor", "Foxes", "Engines", "Strangers", "Orchard", "Lanterns", "Parade", "Tigers", "Ghosts", "Satellites", "Rivers", "Choir"}

var titleWords = []string{"Love", "Night", "Dancing", "Blue", "Heart", "Road", "Fire", "Summer", "Rain", "City", "Dream", "Home", "Light", "Tomorrow", "Shadow", "Wings"}

var locations = []string{"Pomona, CA", "Chicago, IL", "Hamtramck, MI", "London, England", "Seattle, WA", "Kingston, Jamaica", "Austin, TX", "Berlin, Germany", "Nashville, TN", "Montreal, Quebec"}
