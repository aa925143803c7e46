package parquet

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// Part is the set of rows sharing one combination of partition values.
type Part struct {
	// Dir is the relative col=value/col=value directory for the rows. It is
	// empty for an unpartitioned table.
	Dir  string
	Rows []interface{}
}

// Partition groups rows by the values of columns. Parts come back in the
// order their first row appears, and rows keep their relative order.
func Partition(rows []interface{}, columns []string) ([]*Part, error) {
	if len(columns) == 0 {
		return []*Part{{Rows: rows}}, nil
	}
	byDir := make(map[string]*Part)
	var parts []*Part
	elems := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			v, err := datalake.ColumnValue(row, col)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
			elems[j] = col + "=" + partitionValue(v)
		}
		dir := strings.Join(elems, "/")
		p, ok := byDir[dir]
		if !ok {
			p = &Part{Dir: dir}
			byDir[dir] = p
			parts = append(parts, p)
		}
		p.Rows = append(p.Rows, row)
	}
	return parts, nil
}

func partitionValue(v interface{}) string {
	if v == nil {
		return DefaultPartition
	}
	s := fmt.Sprint(v)
	if s == "" {
		return DefaultPartition
	}
	return EscapePathName(s)
}

// EscapePathName percent-encodes the characters Hive won't allow in a
// partition directory name.
func EscapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}
