package tracker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
	"github.com/fernandafs/P2P-ProjectNapster/config"
	"github.com/fernandafs/P2P-ProjectNapster/server"
)

// Tracker brokers discovery: it owns the Registry and answers JOIN, SEARCH,
// UPDATE and LIST. It never moves file bytes.
type Tracker struct {
	cfg      config.Tracker
	registry *Registry
	server   *server.Server
	logger   *zap.Logger
}

func New(cfg config.Tracker, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = communication.MaxLineBytes
	}

	t := &Tracker{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger,
	}
	t.server = server.New(t.handleSession, server.Options{
		MaxConns:    cfg.MaxSessions,
		AcceptRate:  cfg.AcceptRate,
		AcceptBurst: cfg.AcceptBurst,
		Logger:      logger,
	})
	return t
}

func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Listen binds the configured address.
func (t *Tracker) Listen() error {
	if err := t.server.Listen(t.cfg.ListenAddr); err != nil {
		return fmt.Errorf("tracker listen on %s: %w", t.cfg.ListenAddr, err)
	}
	t.logger.Info(trackerOnlineListeningOn, zap.Stringer("addr", t.server.Addr()))
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *Tracker) Addr() net.Addr {
	return t.server.Addr()
}

// Serve handles sessions until ctx is done or Close is called.
func (t *Tracker) Serve(ctx context.Context) error {
	err := t.server.Serve(ctx)
	t.logger.Info(trackerStopped)
	return err
}

func (t *Tracker) ListenAndServe(ctx context.Context) error {
	if err := t.Listen(); err != nil {
		return err
	}
	return t.Serve(ctx)
}

func (t *Tracker) Close() error {
	return t.server.Close()
}

// handleSession runs one connection: await a line, dispatch it, reply, and
// again, until the peer closes its end.
func (t *Tracker) handleSession(ctx context.Context, conn net.Conn) {
	logger := t.logger.With(
		zap.String("session", uuid.NewString()),
		zap.Stringer("remote", conn.RemoteAddr()),
	)
	logger.Debug(sessionOpened)
	defer logger.Debug(sessionClosed)

	r := bufio.NewReader(conn)
	for {
		if t.cfg.SessionIdleTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(t.cfg.SessionIdleTimeout))
		}

		line, err := communication.ReadLine(r, t.cfg.MaxLineBytes)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(err, communication.ErrLineTooLong):
				logger.Warn(messageTooLong, zap.Int("limit", t.cfg.MaxLineBytes))
				_ = communication.WriteLine(conn, communication.EncodeError(err))
			case ctx.Err() == nil:
				logger.Debug(readFailed, zap.Error(err))
			}
			return
		}

		if err := communication.WriteLine(conn, t.dispatch(logger, line)); err != nil {
			logger.Debug(replyFailed, zap.Error(err))
			return
		}
	}
}

// dispatch applies one request line to the registry and returns the reply line.
func (t *Tracker) dispatch(logger *zap.Logger, line string) string {
	req, err := communication.DecodeRequest(line)
	if err != nil {
		logger.Warn(malformedMessage, zap.String("line", abbreviate(line)), zap.Error(err))
		return communication.EncodeError(err)
	}
	if !req.Operation.PeerTracker() {
		logger.Warn(unrecognizedPeerTrackerOperation, zap.String("operation", string(req.Operation)))
		return communication.EncodeError(fmt.Errorf("%w: %s %q", communication.ErrMalformedMessage, unrecognizedPeerTrackerOperation, req.Operation))
	}
	logger.Debug(handlingRequest, zap.String("operation", string(req.Operation)))

	switch req.Operation {
	case communication.Join:
		t.registry.Join(req.Address, req.Files)
		logger.Info(joinIsSuccessful, zap.Stringer("peer", req.Address), zap.Strings("files", req.Files))
		return communication.JoinOK

	case communication.Update:
		if created := t.registry.Update(req.Address, req.FileName); created {
			logger.Warn(updateForUnknownPeer, zap.Stringer("peer", req.Address))
		}
		logger.Info(updateIsSuccessful, zap.Stringer("peer", req.Address), zap.String("file", req.FileName))
		return communication.UpdateOK

	case communication.Search:
		found := t.registry.Search(req.FileName)
		if len(found) == 0 {
			logger.Info(fileDoesNotExist, zap.Stringer("requester", req.Address), zap.String("file", req.FileName))
		} else {
			logger.Info(fileIsFound, zap.Stringer("requester", req.Address), zap.String("file", req.FileName), zap.Int("peers", len(found)))
		}
		return communication.EncodePeerList(found)

	case communication.List:
		names := t.registry.FileNames()
		logger.Info(listIsSuccessful, zap.Int("files", len(names)))
		return communication.EncodeFileList(names)

	default:
		return communication.EncodeError(fmt.Errorf("%w: %s %q", communication.ErrMalformedMessage, unrecognizedPeerTrackerOperation, req.Operation))
	}
}
