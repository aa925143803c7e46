package gen_test

import (
	"testing"
	"time"

	"github.com/sparkify/datalake/fake/gen"
)

func TestTime(t *testing.T) {
	g := gen.NewGenerator(0)
	start := time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC)
	last := start
	for i := 0; i < 1000; i++ {
		tim := g.Time(start, time.Second)
		if tim.Before(last) {
			t.Fatalf("generated a time before the last time")
		}
		if tim.Sub(last) > time.Second {
			t.Fatalf("generated a time more than a second after the last one")
		}
		last = tim
	}
}

func TestDeterministic(t *testing.T) {
	a, b := gen.NewGenerator(42), gen.NewGenerator(42)
	for i := 0; i < 100; i++ {
		if x, y := a.String(16, 500), b.String(16, 500); x != y {
			t.Fatalf("same seed gave %s and %s", x, y)
		}
	}
}

func TestUint64(t *testing.T) {
	g := gen.NewGenerator(7)
	counts := make(map[uint64]int)
	for i := 0; i < 10000; i++ {
		v := g.Uint64(100)
		if v >= 100 {
			t.Fatalf("value %d out of range", v)
		}
		counts[v]++
	}
	if counts[0] <= counts[99] {
		t.Fatalf("expected a skewed distribution, got %d zeros and %d 99s", counts[0], counts[99])
	}
	if v := g.Uint64(1); v != 0 {
		t.Fatalf("cardinality 1 should always give 0, got %d", v)
	}
}

func TestID(t *testing.T) {
	g := gen.NewGenerator(1)
	seen := make(map[string]struct{})
	for n := uint64(0); n < 1000; n++ {
		id := g.ID(16, n)
		if len(id) != 16 {
			t.Fatalf("bad length: %s", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
