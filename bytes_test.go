package datalake

import "testing"

func TestBytes(t *testing.T) {
	for _, test := range []struct {
		b   Bytes
		exp string
	}{
		{0, "0"},
		{512, "512B"},
		{1024, "1K"},
		{1536, "1.5K"},
		{5 << 20, "5M"},
		{1288490189, "1.2G"},
		{3 << 40, "3T"},
	} {
		if got := test.b.String(); got != test.exp {
			t.Errorf("Bytes(%d): expected %s, got %s", uint64(test.b), test.exp, got)
		}
	}
}
