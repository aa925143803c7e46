// Package gen has primitives for generating deterministic, skewed fake data.
package gen

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"hash"
	"math/rand"
	"time"
)

// Generator produces pseudo random values. The same seed always gives the
// same sequence. A Generator is not threadsafe.
type Generator struct {
	r     *rand.Rand
	zs    map[int]*rand.Zipf
	times map[time.Time]time.Duration
	hsh   hash.Hash
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	r := rand.New(rand.NewSource(seed))
	return &Generator{
		r:     r,
		zs:    make(map[int]*rand.Zipf),
		times: make(map[time.Time]time.Duration),
		hsh:   sha1.New(),
	}
}

// String returns a string of the given length (at most 32) drawn from
// cardinality possible values with a zipfian distribution.
func (g *Generator) String(length, cardinality int) string {
	return g.ID(length, g.Uint64(cardinality))
}

// ID returns a string of length upper case letters and digits (at most 32)
// derived from n. Distinct n give distinct IDs with overwhelming likelihood.
func (g *Generator) ID(length int, n uint64) string {
	if length > 32 {
		length = 32
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	_, _ = g.hsh.Write(b) // no need to check err
	hashed := g.hsh.Sum(nil)
	g.hsh.Reset()
	return base32.StdEncoding.EncodeToString(hashed)[:length]
}

// Uint64 returns a value in [0, cardinality) with a zipfian distribution, so
// low values are much more common than high ones.
func (g *Generator) Uint64(cardinality int) uint64 {
	if cardinality <= 1 {
		return 0
	}
	z, ok := g.zs[cardinality]
	if !ok {
		// We subtract one from cardinality because rand.Zipf generates values
		// in [0, imax], but the expectation from funcs like rand.Intn is to
		// generate values in [0, n).
		imax := uint64(cardinality) - 1
		v := 0.05 * float64(imax)
		if v < 1.0 {
			v = 1.0
		}
		z = rand.NewZipf(g.r, 1.1, v, imax)
		g.zs[cardinality] = z
	}
	return z.Uint64()
}

// Intn returns a uniform value in [0, n).
func (g *Generator) Intn(n int) int {
	return g.r.Intn(n)
}

// Float64 returns a uniform value in [0, 1).
func (g *Generator) Float64() float64 {
	return g.r.Float64()
}

// Chance returns true with probability p.
func (g *Generator) Chance(p float64) bool {
	return g.r.Float64() < p
}

// Pick returns a uniformly chosen element of choices.
func (g *Generator) Pick(choices []string) string {
	return choices[g.r.Intn(len(choices))]
}

// Time returns a time after from which is later than every time previously
// returned for the same from, by at most maxDelta.
func (g *Generator) Time(from time.Time, maxDelta time.Duration) time.Time {
	delta, ok := g.times[from]
	if !ok {
		delta = time.Duration(g.r.Uint64() % uint64(maxDelta))
		g.times[from] = delta
	} else {
		delta += time.Duration(g.r.Uint64() % uint64(maxDelta))
		g.times[from] = delta
	}
	return from.Add(delta)
}
