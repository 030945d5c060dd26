package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
	"github.com/fernandafs/P2P-ProjectNapster/util"
)

const (
	DefaultTrackerAddr      = "0.0.0.0:6881"
	DefaultSelfAddr         = "127.0.0.1:0"
	DefaultShareDir         = "shared"
	DefaultMaxConns         = 256
	DefaultDialTimeout      = 3 * time.Second
	DefaultDiscoveryTimeout = 5 * time.Second
)

// Tracker configures the tracker process.
type Tracker struct {
	ListenAddr         string        `mapstructure:"listen_addr"`
	MaxSessions        int64         `mapstructure:"max_sessions"`
	AcceptRate         float64       `mapstructure:"accept_rate"`
	AcceptBurst        int           `mapstructure:"accept_burst"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	MaxLineBytes       int           `mapstructure:"max_line_bytes"`
	MDNS               bool          `mapstructure:"mdns"`
}

// Peer configures a peer process. TrackerAddr may be left empty when the
// tracker is to be found over mDNS.
type Peer struct {
	SelfAddr         string        `mapstructure:"self_addr"`
	TrackerAddr      string        `mapstructure:"tracker_addr"`
	ShareDir         string        `mapstructure:"share_dir"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	MaxLineBytes     int           `mapstructure:"max_line_bytes"`
	MaxConns         int64         `mapstructure:"max_conns"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
}

// File is the layout of a configuration file.
type File struct {
	Tracker Tracker `mapstructure:"tracker"`
	Peer    Peer    `mapstructure:"peer"`
}

func DefaultTracker() Tracker {
	return Tracker{
		ListenAddr:   DefaultTrackerAddr,
		MaxSessions:  DefaultMaxConns,
		MaxLineBytes: communication.MaxLineBytes,
	}
}

func DefaultPeer() Peer {
	return Peer{
		SelfAddr:         DefaultSelfAddr,
		ShareDir:         DefaultShareDir,
		DialTimeout:      DefaultDialTimeout,
		ChunkSize:        communication.ChunkSize,
		MaxLineBytes:     communication.MaxLineBytes,
		MaxConns:         DefaultMaxConns,
		DiscoveryTimeout: DefaultDiscoveryTimeout,
	}
}

// Load returns the defaults overlaid with the JSON file at path. An empty
// path yields the defaults.
func Load(path string) (File, error) {
	f := File{Tracker: DefaultTracker(), Peer: DefaultPeer()}
	if path == "" {
		return f, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Decode(raw, &f); err != nil {
		return File{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

// Decode merges raw into out. Keys absent from raw leave out untouched,
// unknown keys are an error and durations may be given as strings ("3s").
func Decode(raw map[string]any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(raw)
}

func (t Tracker) Validate() error {
	if err := util.ValidateHostPort(t.ListenAddr); err != nil {
		return fmt.Errorf("listen address %q: %w", t.ListenAddr, err)
	}
	if t.MaxLineBytes <= 0 {
		return errors.New("max_line_bytes must be positive")
	}
	if t.AcceptRate < 0 || t.AcceptBurst < 0 {
		return errors.New("accept rate and burst must not be negative")
	}
	return nil
}

func (p Peer) Validate() error {
	if err := util.ValidateHostPort(p.SelfAddr); err != nil {
		return fmt.Errorf("self address %q: %w", p.SelfAddr, err)
	}
	host, _, _ := net.SplitHostPort(p.SelfAddr)
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		return fmt.Errorf("self address %q must name a host other peers can reach", p.SelfAddr)
	}

	if p.TrackerAddr != "" {
		if _, err := communication.ParsePeerAddress(p.TrackerAddr); err != nil {
			return fmt.Errorf("tracker address: %w", err)
		}
	}
	if p.ShareDir == "" {
		return errors.New("share folder is required")
	}
	if p.ChunkSize <= 0 || p.MaxLineBytes <= 0 {
		return errors.New("chunk_size and max_line_bytes must be positive")
	}
	return nil
}
