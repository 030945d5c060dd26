package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTracker(), f.Tracker)
	assert.Equal(t, DefaultPeer(), f.Peer)
	assert.NoError(t, f.Tracker.Validate())
	assert.NoError(t, f.Peer.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"tracker": {"listen_addr": "127.0.0.1:7000", "session_idle_timeout": "90s", "mdns": true},
		"peer": {"tracker_addr": "127.0.0.1:7000", "share_dir": "/tmp/share", "request_timeout": "1m", "max_conns": 8}
	}`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", f.Tracker.ListenAddr)
	assert.Equal(t, 90*time.Second, f.Tracker.SessionIdleTimeout)
	assert.True(t, f.Tracker.MDNS)
	assert.EqualValues(t, DefaultMaxConns, f.Tracker.MaxSessions)

	assert.Equal(t, "127.0.0.1:7000", f.Peer.TrackerAddr)
	assert.Equal(t, "/tmp/share", f.Peer.ShareDir)
	assert.Equal(t, time.Minute, f.Peer.RequestTimeout)
	assert.EqualValues(t, 8, f.Peer.MaxConns)
	assert.Equal(t, DefaultDialTimeout, f.Peer.DialTimeout)
	assert.Equal(t, DefaultSelfAddr, f.Peer.SelfAddr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, `{"peer": {"share_folder": "x"}}`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPeerValidate(t *testing.T) {
	p := DefaultPeer()
	p.SelfAddr = "0.0.0.0:5000"
	assert.Error(t, p.Validate())

	p = DefaultPeer()
	p.SelfAddr = ":5000"
	assert.Error(t, p.Validate())

	p = DefaultPeer()
	p.TrackerAddr = "127.0.0.1:0"
	assert.Error(t, p.Validate())

	p = DefaultPeer()
	p.ShareDir = ""
	assert.Error(t, p.Validate())
}

func TestTrackerValidate(t *testing.T) {
	tr := DefaultTracker()
	tr.ListenAddr = "nohost"
	assert.Error(t, tr.Validate())

	tr = DefaultTracker()
	tr.AcceptRate = -1
	assert.Error(t, tr.Validate())
}
