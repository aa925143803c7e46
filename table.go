package datalake

import (
	"context"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Output table names. Each is written at its own path under the output root.
const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

// Table is an in-memory result set produced by one of the extractors. Every
// row has the same struct type as Schema.
type Table struct {
	Name string

	// Schema is a pointer to a zero value of the row type. Columnar sinks
	// derive the file schema from its struct tags.
	Schema interface{}

	// PartitionBy lists the columns the table should be partitioned by when
	// written, outermost first. Empty means unpartitioned.
	PartitionBy []string

	Rows []interface{}
}

// NewTable returns an empty table.
func NewTable(name string, schema interface{}, partitionBy ...string) *Table {
	return &Table{
		Name:        name,
		Schema:      schema,
		PartitionBy: partitionBy,
	}
}

// Append adds a row to the table.
func (t *Table) Append(row interface{}) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	return len(t.Rows)
}

// WriteMode tells a Sink what to do when the table already exists.
type WriteMode int

const (
	// ModeOverwrite replaces everything under the table's path.
	ModeOverwrite WriteMode = iota
	// ModeErrorIfExists fails with ErrTableExists if anything is there.
	ModeErrorIfExists
)

func (m WriteMode) String() string {
	switch m {
	case ModeOverwrite:
		return "overwrite"
	case ModeErrorIfExists:
		return "errorifexists"
	default:
		return "unknown"
	}
}

// ParseWriteMode parses the names returned by WriteMode.String.
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(s) {
	case "", "overwrite":
		return ModeOverwrite, nil
	case "errorifexists", "error":
		return ModeErrorIfExists, nil
	}
	return 0, ConfigErrorf("unknown write mode '%s'", s)
}

// Sink persists tables. Implementations write each table independently; there
// is no transaction spanning several tables.
type Sink interface {
	Write(ctx context.Context, t *Table, partitionBy []string, mode WriteMode) error
}

// Store is the storage backend under a Sink: a local directory or an object
// store prefix. Keys and dirs are slash separated and relative to the store
// root.
type Store interface {
	Exists(ctx context.Context, dir string) (bool, error)
	RemoveAll(ctx context.Context, dir string) error
	Put(ctx context.Context, key string, body io.Reader) error
}

var columnIndexes sync.Map // reflect.Type -> map[string]int

// ColumnValue returns the value of the named column in row, which must be a
// struct (or pointer to struct) with parquet struct tags. Nil pointer fields
// yield nil; other pointers are dereferenced.
func ColumnValue(row interface{}, column string) (interface{}, error) {
	v := reflect.Indirect(reflect.ValueOf(row))
	if v.Kind() != reflect.Struct {
		return nil, errors.Errorf("row of type %T is not a struct", row)
	}
	idx, ok := columnIndex(v.Type())[column]
	if !ok {
		return nil, errors.Errorf("no column '%s' in %s", column, v.Type())
	}
	f := v.Field(idx)
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return nil, nil
		}
		f = f.Elem()
	}
	return f.Interface(), nil
}

func columnIndex(typ reflect.Type) map[string]int {
	if m, ok := columnIndexes.Load(typ); ok {
		return m.(map[string]int)
	}
	m := make(map[string]int, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name := tagName(typ.Field(i).Tag.Get("parquet"))
		if name == "" {
			name = strings.ToLower(typ.Field(i).Name)
		}
		m[name] = i
	}
	columnIndexes.Store(typ, m)
	return m
}

// tagName pulls name=... out of a parquet struct tag.
func tagName(tag string) string {
	for _, part := range strings.Split(tag, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && strings.ToLower(kv[0]) == "name" {
			return kv[1]
		}
	}
	return ""
}
