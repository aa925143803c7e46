// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	songData string
	hosts    []string
	keyID    string
	region   string
	timeout  time.Duration
}

func testFlags(c *testConfig) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.StringVar(&c.songData, "song-data", "default", "")
	fs.StringSliceVar(&c.hosts, "kafka-hosts", []string{"localhost:9092"}, "")
	fs.StringVar(&c.keyID, "aws-access-key-id", "", "")
	fs.StringVar(&c.region, "region", "us-west-2", "")
	fs.DurationVar(&c.timeout, "timeout", 0, "")
	return fs
}

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0644))
	return p
}

func TestSetAllConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		config  string
		cfgName string
		exp     testConfig
	}{
		{
			name: "defaults",
			exp:  testConfig{songData: "default", hosts: []string{"localhost:9092"}, region: "us-west-2"},
		},
		{
			name: "flags",
			args: []string{"--song-data", "s3://b/songs", "--kafka-hosts", "a:1,b:2", "--timeout", "1m"},
			exp:  testConfig{songData: "s3://b/songs", hosts: []string{"a:1", "b:2"}, region: "us-west-2", timeout: time.Minute},
		},
		{
			name: "env",
			env:  map[string]string{"DATALAKE_SONG_DATA": "/env/songs", "DATALAKE_KAFKA_HOSTS": "c:3,d:4"},
			exp:  testConfig{songData: "/env/songs", hosts: []string{"c:3", "d:4"}, region: "us-west-2"},
		},
		{
			name:    "toml",
			cfgName: "datalake.toml",
			config:  "song-data = \"/toml/songs\"\nkafka-hosts = [\"e:5\", \"f:6\"]\ntimeout = \"2s\"\n",
			exp:     testConfig{songData: "/toml/songs", hosts: []string{"e:5", "f:6"}, region: "us-west-2", timeout: 2 * time.Second},
		},
		{
			name:    "flag beats env beats config",
			args:    []string{"--kafka-hosts", "g:7"},
			env:     map[string]string{"DATALAKE_SONG_DATA": "/env/songs"},
			cfgName: "datalake.yaml",
			config:  "song-data: /yaml/songs\nkafka-hosts: [h:8]\nregion: eu-west-1\n",
			exp:     testConfig{songData: "/env/songs", hosts: []string{"g:7"}, region: "eu-west-1"},
		},
		{
			name:    "ini",
			cfgName: "dl.cfg",
			config:  "[AWS]\nAWS_ACCESS_KEY_ID=AKIAEXAMPLE\nAWS_SECRET_ACCESS_KEY=secret\n",
			exp:     testConfig{songData: "default", hosts: []string{"localhost:9092"}, keyID: "AKIAEXAMPLE", region: "us-west-2"},
		},
		{
			name:    "env beats ini alias",
			env:     map[string]string{"DATALAKE_AWS_ACCESS_KEY_ID": "FROMENV"},
			cfgName: "dl.cfg",
			config:  "[AWS]\nAWS_ACCESS_KEY_ID=AKIAEXAMPLE\n",
			exp:     testConfig{songData: "default", hosts: []string{"localhost:9092"}, keyID: "FROMENV", region: "us-west-2"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			args := test.args
			if test.config != "" {
				args = append(args, "--config", writeConfig(t, test.cfgName, test.config))
			}
			var got testConfig
			fs := testFlags(&got)
			require.NoError(t, fs.Parse(args))
			require.NoError(t, setAllConfig(viper.New(), fs, "DATALAKE"))
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestSetAllConfigErrors(t *testing.T) {
	var c testConfig
	fs := testFlags(&c)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}))
	assert.Error(t, setAllConfig(viper.New(), fs, "DATALAKE"))

	fs = testFlags(&c)
	t.Setenv("DATALAKE_TIMEOUT", "soon")
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, setAllConfig(viper.New(), fs, "DATALAKE"))
}

func TestConfigType(t *testing.T) {
	for name, exp := range map[string]string{
		"dl.cfg":        "ini",
		"a/b/conf.INI":  "ini",
		"datalake.yml":  "yaml",
		"datalake.json": "json",
		"datalake.toml": "toml",
		"datalake.conf": "toml",
		"no-extension":  "toml",
	} {
		assert.Equal(t, exp, configType(name), name)
	}
}

func TestRootCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	var names []string
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"etl", "gen"}, names)
}

func TestGenThenETL(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "lake")

	rc := NewRootCommand(nil, new(bytes.Buffer), new(bytes.Buffer))
	rc.SetArgs([]string{"gen", "--output", in, "--songs", "20", "--events", "200", "--seed", "7"})
	require.NoError(t, rc.Execute())
	assert.Equal(t, int64(7), GenMain.Seed)

	t.Setenv("DATALAKE_SONG_DATA", filepath.Join(in, "song_data"))
	t.Setenv("DATALAKE_LOG_DATA", filepath.Join(in, "log_data"))
	rc = NewRootCommand(nil, new(bytes.Buffer), new(bytes.Buffer))
	rc.SetArgs([]string{"etl", "--output", out})
	require.NoError(t, rc.Execute())

	require.NotNil(t, ETLMain.Report)
	assert.Equal(t, 20, ETLMain.Report.Rows["songs"])
	for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
		_, err := os.Stat(filepath.Join(out, table, "_SUCCESS"))
		assert.NoError(t, err, table)
	}
}
