// Package discovery lets peers on the same link find the tracker over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/fernandafs/P2P-ProjectNapster/util"
)

const (
	ServiceName = "_p2pfilesharing._tcp"
	Domain      = "local."
)

var appRecord = "app=" + util.AppName

// ErrNoTracker is returned by LookupTracker when nothing answered in time.
var ErrNoTracker = errors.New("no tracker found over mDNS")

// Advertiser announces a running tracker until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the tracker listening on port on every interface.
func Advertise(instance string, port int) (*Advertiser, error) {
	server, err := zeroconf.Register(
		instance,
		ServiceName,
		Domain,
		port,
		[]string{"txtv=1", appRecord},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// LookupTracker browses for a tracker and returns the first usable host:port.
func LookupTracker(ctx context.Context, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mDNS resolver: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceName, Domain, entries); err != nil {
		return "", fmt.Errorf("mDNS browse: %w", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoTracker
			}
			if addr, ok := entryAddress(entry); ok {
				return addr, nil
			}
		case <-ctx.Done():
			return "", ErrNoTracker
		}
	}
}

// entryAddress picks a dialable address from an answer, preferring IPv4.
func entryAddress(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil || entry.Port <= 0 || entry.Port > 65535 || !hasRecord(entry.Text, appRecord) {
		return "", false
	}

	port := strconv.Itoa(entry.Port)
	switch {
	case len(entry.AddrIPv4) > 0:
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port), true
	case len(entry.AddrIPv6) > 0:
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port), true
	case entry.HostName != "":
		return net.JoinHostPort(entry.HostName, port), true
	}
	return "", false
}

func hasRecord(text []string, record string) bool {
	for _, t := range text {
		if t == record {
			return true
		}
	}
	return false
}
