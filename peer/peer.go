package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
	"github.com/fernandafs/P2P-ProjectNapster/config"
	"github.com/fernandafs/P2P-ProjectNapster/file"
	"github.com/fernandafs/P2P-ProjectNapster/server"
)

// ErrNotAdvertised is returned by Download when the file arrived but the
// tracker could not be told about it. The local copy is kept.
var ErrNotAdvertised = errors.New("downloaded file is not advertised")

// ErrNotListening is returned by operations that need the server role
// before Listen or Join has started it.
var ErrNotListening = errors.New("peer is not listening")

// Peer is one participant of the overlay. Its client role talks to the
// tracker and to other peers, one connection per request; its server role
// answers DOWNLOAD requests from the share folder.
type Peer struct {
	cfg             config.Peer
	trackerHostPort string
	store           *file.Store
	filesToShare    []string
	server          *server.Server
	dialer          net.Dialer
	logger          *zap.Logger

	mu           sync.Mutex
	selfHostPort communication.PeerAddress
	listening    bool
	registered   bool
}

// New prepares a peer and snapshots its share folder. The snapshot is what
// JOIN announces; files that arrive later are announced through UPDATE.
func New(cfg config.Peer, logger *zap.Logger) (*Peer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = communication.ChunkSize
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = communication.MaxLineBytes
	}

	store, err := file.NewStore(cfg.ShareDir)
	if err != nil {
		return nil, fmt.Errorf("share folder: %w", err)
	}

	local, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("share folder: %w", err)
	}

	p := &Peer{
		cfg:             cfg,
		trackerHostPort: cfg.TrackerAddr,
		store:           store,
		dialer:          net.Dialer{Timeout: cfg.DialTimeout},
		logger:          logger,
	}
	for _, f := range local {
		if err := communication.ValidateFileName(f.Name); err != nil {
			logger.Warn(skippingUnshareable, zap.String("file", f.Name), zap.Error(err))
			continue
		}
		p.filesToShare = append(p.filesToShare, f.Name)
	}
	if len(p.filesToShare) > communication.MaxFiles {
		return nil, fmt.Errorf("share folder holds %d files, at most %d can be announced", len(p.filesToShare), communication.MaxFiles)
	}

	p.server = server.New(p.handleConn, server.Options{
		MaxConns: cfg.MaxConns,
		Logger:   logger,
	})
	return p, nil
}

// Files returns the names announced on JOIN.
func (p *Peer) Files() []string {
	return append([]string(nil), p.filesToShare...)
}

// ShareDir returns the absolute share folder path.
func (p *Peer) ShareDir() string {
	return p.store.Dir()
}

// Listen starts the server role. It is idempotent. When the configured port
// is 0 the advertised address carries the port actually bound.
func (p *Peer) Listen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listening {
		return nil
	}

	host, _, err := net.SplitHostPort(p.cfg.SelfAddr)
	if err != nil {
		return err
	}
	if err := p.server.Listen(p.cfg.SelfAddr); err != nil {
		return fmt.Errorf("peer listen on %s: %w", p.cfg.SelfAddr, err)
	}
	_, port, err := net.SplitHostPort(p.server.Addr().String())
	if err != nil {
		return err
	}
	portNumber, err := strconv.Atoi(port)
	if err != nil {
		return err
	}

	p.selfHostPort = communication.PeerAddress{Host: host, Port: portNumber}
	p.listening = true
	go func() {
		_ = p.server.Serve(context.Background())
	}()

	p.logger.Info(peerOnlineListeningOn, zap.Stringer("addr", p.selfHostPort), zap.String("folder", p.store.Dir()))
	return nil
}

// Addr returns the advertised address once listening.
func (p *Peer) Addr() (communication.PeerAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.listening {
		return communication.PeerAddress{}, ErrNotListening
	}
	return p.selfHostPort, nil
}

// Registered reports whether a JOIN has been acknowledged.
func (p *Peer) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

// Close stops the server role and waits for in-flight uploads.
func (p *Peer) Close() error {
	return p.server.Close()
}

// Join announces the share folder snapshot to the tracker. The server role is
// started first, so the peer never becomes discoverable before it accepts
// downloads.
func (p *Peer) Join(ctx context.Context) error {
	if err := p.Listen(); err != nil {
		return err
	}
	self, err := p.Addr()
	if err != nil {
		return err
	}

	reply, err := p.roundTrip(ctx, p.trackerHostPort, communication.Request{
		Operation: communication.Join,
		Address:   self,
		Files:     p.filesToShare,
	})
	if err != nil {
		return err
	}
	if err := communication.ExpectToken(reply, communication.JoinOK); err != nil {
		return fmt.Errorf("%s: %w", badTrackerResponse, err)
	}

	p.mu.Lock()
	p.registered = true
	p.mu.Unlock()
	p.logger.Info(joinIsSuccessful, zap.Stringer("self", self), zap.Int("files", len(p.filesToShare)))
	return nil
}

// Search asks the tracker which peers offer name. No match is an empty
// slice, not an error.
func (p *Peer) Search(ctx context.Context, name string) ([]communication.PeerAddress, error) {
	if err := communication.ValidateFileName(name); err != nil {
		return nil, err
	}
	self, err := p.Addr()
	if err != nil {
		return nil, err
	}

	reply, err := p.roundTrip(ctx, p.trackerHostPort, communication.Request{
		Operation: communication.Search,
		Address:   self,
		FileName:  name,
	})
	if err != nil {
		return nil, err
	}
	if err := communication.DecodeReply(reply); err != nil {
		return nil, err
	}
	return communication.DecodePeerList(reply)
}

// List asks the tracker for every advertised file name.
func (p *Peer) List(ctx context.Context) ([]string, error) {
	reply, err := p.roundTrip(ctx, p.trackerHostPort, communication.Request{Operation: communication.List})
	if err != nil {
		return nil, err
	}
	if err := communication.DecodeReply(reply); err != nil {
		return nil, err
	}
	return communication.DecodeFileList(reply)
}

// Update tells the tracker this peer now also offers name.
func (p *Peer) Update(ctx context.Context, name string) error {
	if err := communication.ValidateFileName(name); err != nil {
		return err
	}
	self, err := p.Addr()
	if err != nil {
		return err
	}

	reply, err := p.roundTrip(ctx, p.trackerHostPort, communication.Request{
		Operation: communication.Update,
		Address:   self,
		FileName:  name,
	})
	if err != nil {
		return err
	}
	if err := communication.ExpectToken(reply, communication.UpdateOK); err != nil {
		return fmt.Errorf("%s: %w", badTrackerResponse, err)
	}

	p.logger.Info(updateIsSuccessful, zap.String("file", name))
	return nil
}

// Download pulls name from the peer at from into the share folder, then
// announces it with Update. The file only appears once every announced byte
// has arrived; a short stream is communication.ErrTruncated and leaves
// nothing behind. If the transfer succeeds but Update fails, the error wraps
// ErrNotAdvertised and the local copy stays.
func (p *Peer) Download(ctx context.Context, from communication.PeerAddress, name string) (int64, error) {
	if err := communication.ValidateFileName(name); err != nil {
		return 0, err
	}
	if _, err := p.Addr(); err != nil {
		return 0, err
	}

	n, err := p.fetch(ctx, from, name)
	if err != nil {
		return n, err
	}
	p.logger.Info(downloadIsSuccessful, zap.Stringer("from", from), zap.String("file", name), zap.Int64("bytes", n))

	if err := p.Update(ctx, name); err != nil {
		return n, fmt.Errorf("%w: %s: %w", ErrNotAdvertised, name, err)
	}
	return n, nil
}

func (p *Peer) fetch(ctx context.Context, from communication.PeerAddress, name string) (int64, error) {
	c, err := p.dial(ctx, from.String())
	if err != nil {
		return 0, err
	}
	defer c.Close()

	if err := communication.WriteLine(c, communication.Request{Operation: communication.Download, FileName: name}.Encode()); err != nil {
		return 0, fmt.Errorf("%w: %v", communication.ErrConnectivity, err)
	}

	r := bufio.NewReaderSize(c, p.cfg.ChunkSize)
	header, err := p.readReply(r)
	if err != nil {
		return 0, err
	}
	size, err := communication.DecodeSize(header)
	if err != nil {
		return 0, err
	}

	w, err := p.store.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := io.CopyN(w, r, size)
	if err != nil {
		_ = w.Abort()
		if errors.Is(err, io.EOF) {
			return n, fmt.Errorf("%w: %s: got %d of %d bytes", communication.ErrTruncated, name, n, size)
		}
		return n, fmt.Errorf("download %s: %w", name, err)
	}
	if err := w.Commit(); err != nil {
		return n, fmt.Errorf("download %s: %w", name, err)
	}
	return n, nil
}
