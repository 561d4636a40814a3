// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	for _, tc := range []struct {
		opts           map[string]string
		loopInterval   time.Duration
		sessionTimeout time.Duration
		err            string
	}{
		{opts: nil, loopInterval: DefaultLoopInterval},
		{opts: map[string]string{"unrelated": "x"}, loopInterval: DefaultLoopInterval},
		{opts: map[string]string{LoopIntervalKey: "250"}, loopInterval: 250 * time.Millisecond},
		{opts: map[string]string{LoopIntervalKey: " 1s "}, loopInterval: time.Second},
		{opts: map[string]string{LoopIntervalKey: "0"}, loopInterval: DefaultLoopInterval},
		{
			opts:           map[string]string{SessionTimeoutKey: "30000"},
			loopInterval:   DefaultLoopInterval,
			sessionTimeout: 30 * time.Second,
		},
		{opts: map[string]string{LoopIntervalKey: "-5"}, err: "loop interval must not be negative"},
		{opts: map[string]string{SessionTimeoutKey: "-1s"}, err: "session timeout must not be negative"},
		{opts: map[string]string{LoopIntervalKey: "soon"}, err: `parsing scheduler_loop_interval: invalid duration "soon"`},
		{opts: map[string]string{SessionTimeoutKey: ""}, err: "parsing session_timeout: empty value"},
	} {
		c, err := ParseConfig(tc.opts)
		if tc.err != "" {
			require.ErrorContains(t, err, tc.err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.loopInterval, c.LoopInterval)
		require.Equal(t, tc.sessionTimeout, c.SessionTimeout)
		require.NotNil(t, c.TimeSource)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
loop_interval: 50
session_timeout: 5m
schedulers: 3
log_format: json
verbosity: 2
`), 0644))

	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, FileConfig{
		LoopInterval:   "50",
		SessionTimeout: "5m",
		Schedulers:     3,
		LogFormat:      "json",
		Verbosity:      2,
	}, fc)
	pc, err := fc.PoolConfig()
	require.NoError(t, err)
	require.Equal(t, 3, pc.Schedulers)
	require.Equal(t, 50*time.Millisecond, pc.Scheduler.LoopInterval)
	require.Equal(t, 5*time.Minute, pc.Scheduler.SessionTimeout)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	fc, err = ParseConfigFile(nil)
	require.NoError(t, err)
	pc, err = fc.PoolConfig()
	require.NoError(t, err)
	require.Equal(t, runtime.GOMAXPROCS(0), pc.Schedulers)
	require.Equal(t, DefaultLoopInterval, pc.Scheduler.LoopInterval)

	for _, bad := range []string{
		"loop_intervl: 5",
		"schedulers: -1",
		"log_format: xml",
		"loop_interval: [1, 2]",
	} {
		_, err := ParseConfigFile([]byte(bad))
		require.Error(t, err, bad)
	}
	fc, err = ParseConfigFile([]byte("loop_interval: -3"))
	require.NoError(t, err)
	_, err = fc.PoolConfig()
	require.Error(t, err)
}
