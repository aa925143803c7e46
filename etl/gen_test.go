package etl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	fail error
}

func (r *recordingPublisher) Publish(key string, v interface{}) error {
	if r.fail != nil {
		return r.fail
	}
	r.keys = append(r.keys, key)
	return nil
}

func TestGenMain(t *testing.T) {
	g := NewGenMain()
	g.Output = t.TempDir()
	g.Songs, g.Events = 10, 100
	g.KafkaTopic = "events"
	pub := &recordingPublisher{}
	g.Publisher = pub
	require.NoError(t, g.Run())

	assert.Len(t, pub.keys, 100)
	songs, err := filepath.Glob(filepath.Join(g.Output, "song_data", "*", "*", "*", "*.json"))
	require.NoError(t, err)
	assert.Len(t, songs, 10)
	_, err = os.Stat(filepath.Join(g.Output, "log_data", "2018", "11"))
	assert.NoError(t, err)
}

func TestGenMainErrors(t *testing.T) {
	g := NewGenMain()
	assert.Equal(t, datalake.ErrConfiguration, errors.Cause(g.Run()))

	g.Output = t.TempDir()
	g.Start = "November"
	assert.Equal(t, datalake.ErrConfiguration, errors.Cause(g.Run()))

	g = NewGenMain()
	g.KafkaTopic = "events"
	g.Publisher = &recordingPublisher{fail: errors.New("broker down")}
	assert.Error(t, g.Run())
}
