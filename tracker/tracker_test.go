package tracker

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
	"github.com/fernandafs/P2P-ProjectNapster/config"
)

type session struct {
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}
}

// newSession runs handleSession over an in-memory pipe.
func newSession(t *testing.T, tr *Tracker) *session {
	t.Helper()
	client, srv := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer srv.Close()
		tr.handleSession(context.Background(), srv)
	}()
	t.Cleanup(func() { client.Close() })
	return &session{conn: client, r: bufio.NewReader(client), done: done}
}

func (s *session) send(t *testing.T, line string) string {
	t.Helper()
	require.NoError(t, communication.WriteLine(s.conn, line))
	reply, err := communication.ReadLine(s.r, communication.MaxLineBytes)
	require.NoError(t, err)
	return reply
}

func newTracker() *Tracker {
	cfg := config.DefaultTracker()
	cfg.ListenAddr = "127.0.0.1:0"
	return New(cfg, nil)
}

func TestSessionHandlesSeveralMessages(t *testing.T) {
	tr := newTracker()
	s := newSession(t, tr)

	assert.Equal(t, communication.JoinOK, s.send(t, "JOIN 10.0.0.1:5000 a.txt,b.txt"))
	assert.Equal(t, communication.JoinOK, s.send(t, "JOIN 10.0.0.2:5000 b.txt"))
	assert.Equal(t, "10.0.0.1:5000,10.0.0.2:5000", s.send(t, "SEARCH 10.0.0.3:5000,b.txt"))
	assert.Equal(t, communication.EmptyList, s.send(t, "SEARCH 10.0.0.3:5000,nonexistent.txt"))
	assert.Equal(t, communication.UpdateOK, s.send(t, "UPDATE 10.0.0.2:5000,c.txt"))
	assert.Equal(t, "a.txt,b.txt,c.txt", s.send(t, "LIST"))

	files, _ := tr.Registry().Files(communication.PeerAddress{Host: "10.0.0.2", Port: 5000})
	assert.Equal(t, []string{"b.txt", "c.txt"}, files)
}

func TestSessionSurvivesMalformedMessages(t *testing.T) {
	tr := newTracker()
	s := newSession(t, tr)

	for _, bad := range []string{
		"JOIN 10.0.0.1:5000",
		"JOIN 10.0.0.1:port a.txt",
		"SEARCH garbage",
		"HELLO",
		"DOWNLOAD a.txt",
	} {
		reply := s.send(t, bad)
		assert.True(t, strings.HasPrefix(reply, communication.ErrorToken+" "), "%q -> %q", bad, reply)
	}
	assert.Equal(t, 0, tr.Registry().Len())

	assert.Equal(t, communication.JoinOK, s.send(t, "JOIN 10.0.0.1:5000 a.txt"))
	assert.Equal(t, 1, tr.Registry().Len())
}

func TestSessionEndsOnClose(t *testing.T) {
	s := newSession(t, newTracker())
	assert.Equal(t, communication.EmptyList, s.send(t, "LIST"))

	require.NoError(t, s.conn.Close())
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session handler kept running after the peer closed the connection")
	}
}

func TestSessionClosesOnOverlongLine(t *testing.T) {
	cfg := config.DefaultTracker()
	cfg.MaxLineBytes = 64
	s := newSession(t, New(cfg, nil))

	reply := s.send(t, "JOIN 10.0.0.1:5000 "+strings.Repeat("a", 100))
	assert.True(t, strings.HasPrefix(reply, communication.ErrorToken))

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session stayed open after an overlong line")
	}
}

func startTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := newTracker()
	require.NoError(t, tr.Listen())
	go func() { _ = tr.Serve(context.Background()) }()
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func request(t *testing.T, addr net.Addr, line string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, communication.WriteLine(conn, line))
	reply, err := communication.ReadLine(bufio.NewReader(conn), communication.MaxLineBytes)
	require.NoError(t, err)
	return reply
}

func TestTrackerOverTCP(t *testing.T) {
	tr := startTracker(t)

	reply := request(t, tr.Addr(), "JOIN 10.0.0.1:5000")
	assert.True(t, strings.HasPrefix(reply, communication.ErrorToken))
	assert.Equal(t, 0, tr.Registry().Len())

	assert.Equal(t, communication.JoinOK, request(t, tr.Addr(), "JOIN 10.0.0.1:5000 a.txt"))
	assert.Equal(t, "10.0.0.1:5000", request(t, tr.Addr(), "SEARCH 10.0.0.9:1,a.txt"))
}

func TestTrackerConcurrentSessions(t *testing.T) {
	tr := startTracker(t)

	const n = 50
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		go func(port int) {
			conn, err := net.Dial("tcp", tr.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			req := communication.Request{
				Operation: communication.Join,
				Address:   communication.PeerAddress{Host: "10.1.0.1", Port: port},
				Files:     []string{"shared"},
			}
			if err := communication.WriteLine(conn, req.Encode()); err != nil {
				errs <- err
				return
			}
			line, err := communication.ReadLine(bufio.NewReader(conn), communication.MaxLineBytes)
			if err == nil {
				err = communication.ExpectToken(line, communication.JoinOK)
			}
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, n, tr.Registry().Len())
	assert.Len(t, tr.Registry().Search("shared"), n)
}

func TestListenFailsOnBoundAddress(t *testing.T) {
	tr := startTracker(t)

	cfg := config.DefaultTracker()
	cfg.ListenAddr = tr.Addr().String()
	assert.Error(t, New(cfg, nil).Listen())
}
