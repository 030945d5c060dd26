package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultMaxConns = 256

var ErrNotListening = errors.New("server is not listening")

// HandlerFunc serves one accepted connection. The connection is closed once
// it returns; ctx is cancelled when the server shuts down.
type HandlerFunc func(ctx context.Context, conn net.Conn)

type Options struct {
	// MaxConns bounds the connections handled at once. Accepting pauses while
	// the bound is reached.
	MaxConns int64
	// AcceptRate limits new connections per second, 0 means unlimited.
	AcceptRate  float64
	AcceptBurst int
	Logger      *zap.Logger
}

// Server runs one goroutine per accepted TCP connection.
type Server struct {
	handler HandlerFunc
	logger  *zap.Logger
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(handler HandlerFunc, opts Options) *Server {
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		handler: handler,
		logger:  opts.Logger,
		sem:     semaphore.NewWeighted(opts.MaxConns),
		conns:   make(map[net.Conn]struct{}),
	}
	if opts.AcceptRate > 0 {
		burst := opts.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	return s
}

// Listen binds addr. Failing to bind is the one error callers should treat
// as fatal.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = l.Close()
		return net.ErrClosed
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts until ctx is done or Close is called. It returns nil on
// shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return ErrNotListening
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := l.Accept()
		if err != nil {
			s.sem.Release(1)
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}

			delay := retry.NextBackOff()
			s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		retry.Reset()

		if !s.track(conn) {
			s.sem.Release(1)
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			defer s.untrack(conn)
			defer conn.Close()

			s.handler(ctx, conn)
		}()
	}
}

// Close stops accepting, closes in-flight connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}
