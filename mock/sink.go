package mock

import (
	"context"
	"sync"

	"github.com/sparkify/datalake"
)

// Sink is a datalake.Sink which keeps every table written to it in memory.
type Sink struct {
	mu     sync.Mutex
	Tables map[string]*datalake.Table
	// Order lists table names in the order they were written.
	Order []string
	Modes []datalake.WriteMode
	// Fail, if set, is returned instead of writing the named table.
	Fail map[string]error
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{
		Tables: make(map[string]*datalake.Table),
		Fail:   make(map[string]error),
	}
}

// Write implements datalake.Sink.
func (s *Sink) Write(ctx context.Context, t *datalake.Table, partitionBy []string, mode datalake.WriteMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail[t.Name]; err != nil {
		return err
	}
	if _, ok := s.Tables[t.Name]; ok && mode == datalake.ModeErrorIfExists {
		return datalake.ErrTableExists
	}
	s.Tables[t.Name] = t
	s.Order = append(s.Order, t.Name)
	s.Modes = append(s.Modes, mode)
	return nil
}
