package peer

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
)

// handleConn answers exactly one DOWNLOAD request per connection.
func (p *Peer) handleConn(ctx context.Context, conn net.Conn) {
	logger := p.logger.With(
		zap.String("session", uuid.NewString()),
		zap.Stringer("remote", conn.RemoteAddr()),
	)

	if p.cfg.RequestTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(p.cfg.RequestTimeout))
	}
	line, err := communication.ReadLine(bufio.NewReader(conn), p.cfg.MaxLineBytes)
	if err != nil {
		if errors.Is(err, communication.ErrLineTooLong) {
			_ = communication.WriteLine(conn, communication.EncodeError(err))
		}
		if !errors.Is(err, io.EOF) && ctx.Err() == nil {
			logger.Debug(readFailed, zap.Error(err))
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	req, err := communication.DecodeRequest(line)
	if err != nil {
		logger.Warn(malformedPeerRequest, zap.Error(err))
		_ = communication.WriteLine(conn, communication.EncodeError(err))
		return
	}
	if !req.Operation.PeerPeer() {
		logger.Warn(misdirectedRequest, zap.String("operation", string(req.Operation)))
		_ = communication.WriteLine(conn, communication.EncodeError(fmt.Errorf("%w: %s", communication.ErrMalformedMessage, onlyDownloadIsServed)))
		return
	}

	p.serveFile(logger, conn, req.FileName)
}

func (p *Peer) serveFile(logger *zap.Logger, conn net.Conn, name string) {
	f, size, err := p.store.Open(name)
	if err != nil {
		if errors.Is(err, communication.ErrResourceNotFound) {
			logger.Info(fileDoesNotExist, zap.String("file", name))
			_ = communication.WriteLine(conn, communication.EncodeError(communication.ErrResourceNotFound))
			return
		}
		logger.Error(serveFailed, zap.String("file", name), zap.Error(err))
		_ = communication.WriteLine(conn, communication.EncodeError(errors.New(internalServeError)))
		return
	}
	defer f.Close()

	if err := communication.WriteLine(conn, communication.EncodeSize(size)); err != nil {
		logger.Debug(serveFailed, zap.String("file", name), zap.Error(err))
		return
	}

	// The wrapper hides conn's ReadFrom so the buffer size decides the chunking.
	n, err := io.CopyBuffer(struct{ io.Writer }{conn}, io.LimitReader(f, size), make([]byte, p.cfg.ChunkSize))
	if err != nil {
		logger.Warn(serveFailed, zap.String("file", name), zap.Int64("sent", n), zap.Error(err))
		return
	}
	logger.Info(fileIsServed,
		zap.String("file", name),
		zap.Int64("bytes", n),
		zap.Int("chunks", communication.CalculateNumberOfChunks(size, p.cfg.ChunkSize)),
	)
}
