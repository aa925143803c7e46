package datalake

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/pkg/errors"
)

// DefaultRangeWidth is the width of the ID ranges handed to fact table
// partitions. The low 33 bits of a songplay_id count rows within a range and
// the high bits identify the range, so IDs are unique across workers without
// any coordination beyond taking the next range.
const DefaultRangeWidth = 1 << 33

// RangeAllocator hands out disjoint ranges of IDs. Implementations must be
// threadsafe.
type RangeAllocator interface {
	Get() (*IDRange, error)
	Return(*IDRange) error
}

// RangeNexter generates IDs from ranges taken from a RangeAllocator. A
// RangeNexter belongs to one worker and is not threadsafe.
type RangeNexter interface {
	Next() (uint64, error)
	Return() error
}

// LocalRangeAllocator is an in-process RangeAllocator. Ranges are handed out
// in increasing order; partially used ranges which are returned get handed
// out again before any new range.
type LocalRangeAllocator struct {
	width    uint64
	next     uint64
	returned []*IDRange
	mu       sync.Mutex
}

// NewLocalRangeAllocator returns a LocalRangeAllocator with the given range
// width, which must be a power of two of at least 2^16.
func NewLocalRangeAllocator(width uint64) RangeAllocator {
	if width < 1<<16 || bits.OnesCount64(width) > 1 {
		panic(fmt.Sprintf("bad width in NewLocalRangeAllocator: %d", width))
	}
	return &LocalRangeAllocator{
		width: width,
	}
}

// IDRange is inclusive at Start and exclusive at End... like slices.
type IDRange struct {
	Start uint64
	End   uint64
}

type rangeNexter struct {
	a RangeAllocator
	r *IDRange
}

// NewRangeNexter takes a first range from a and returns a RangeNexter which
// will take more as needed.
func NewRangeNexter(a RangeAllocator) (RangeNexter, error) {
	r, err := a.Get()
	if err != nil {
		return nil, errors.Wrap(err, "getting range")
	}
	return &rangeNexter{
		a: a,
		r: r,
	}, nil
}

func (n *rangeNexter) Next() (uint64, error) {
	var err error
	if n.r.Start == n.r.End {
		n.r, err = n.a.Get()
		if err != nil {
			return 0, errors.Wrap(err, "getting next range")
		}
	}
	if n.r.Start >= n.r.End {
		return 0, errors.Errorf("invalid range %+v", *n.r)
	}
	n.r.Start++
	return n.r.Start - 1, nil
}

// Return gives the unused remainder of the current range back.
func (n *rangeNexter) Return() error {
	return n.a.Return(n.r)
}

// Get implements RangeAllocator.
func (a *LocalRangeAllocator) Get() (*IDRange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.returned)
	if n > 0 {
		ret := a.returned[n-1]
		a.returned = a.returned[:n-1]
		return ret, nil
	}
	if a.next > math.MaxInt64-a.width {
		return nil, errors.New("ID space exhausted")
	}
	ret := &IDRange{
		Start: a.next,
		End:   a.next + a.width,
	}
	a.next += a.width
	return ret, nil
}

// Return implements RangeAllocator.
func (a *LocalRangeAllocator) Return(r *IDRange) error {
	if r.Start == r.End {
		return nil
	}
	if r.Start > r.End {
		return errors.Errorf("attempted to return range with start > end: %v", r)
	}
	a.mu.Lock()
	a.returned = append(a.returned, r)
	a.mu.Unlock()
	return nil
}
