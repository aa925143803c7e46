package datalake

import (
	"strconv"
	"strings"
)

// Bytes is a byte count which prints in a readable form like 1.2G or 4M.
type Bytes uint64

var byteUnits = []struct {
	suffix string
	size   float64
}{
	{"T", 1 << 40},
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
}

// String returns the size in the largest unit which keeps the value at or
// above 1, with one decimal place at most.
func (b Bytes) String() string {
	if b == 0 {
		return "0"
	}
	v := float64(b)
	for _, u := range byteUnits {
		if v >= u.size {
			return trimZero(strconv.FormatFloat(v/u.size, 'f', 1, 64)) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(b), 10) + "B"
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
