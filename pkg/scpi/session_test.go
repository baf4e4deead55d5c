package scpi

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	TEST_TIMEOUT = 300 * time.Millisecond
	TEST_MARGIN  = 700 * time.Millisecond
)

func TestSessionNotConnected(t *testing.T) {

	assert := assert.New(t)

	session := NewDeviceSession()

	assert.False(session.Connected())

	_, err := session.Send([]byte("*IDN?\n"))
	assert.ErrorIs(err, ErrNotConnected, "send")

	_, err = session.Receive()
	assert.ErrorIs(err, ErrNotConnected, "receive")

	_, err = session.PeerAddress()
	assert.ErrorIs(err, ErrNotConnected, "peer address")
	assert.Equal(NotConnected, ErrorKind(err))
}

func TestSessionConnectRefused(t *testing.T) {

	require := require.New(t)

	address := closedPort(t)
	session := NewDeviceSession(WithConnectTimeout(TEST_TIMEOUT), WithReadTimeout(TEST_TIMEOUT))

	start := time.Now()
	err := session.Connect(address)
	elapsed := time.Since(start)

	require.Error(err)
	require.ErrorIs(err, ErrConnectionRefused)
	require.Less(elapsed, TEST_TIMEOUT+TEST_MARGIN, "connect must give up within the timeout")
	require.False(session.Connected())
}

func TestSessionConnectUnreachableWithinTimeout(t *testing.T) {

	require := require.New(t)

	session := NewDeviceSession(WithConnectTimeout(TEST_TIMEOUT))

	// TEST-NET-1, never routed
	start := time.Now()
	err := session.Connect("192.0.2.1:5025")
	elapsed := time.Since(start)

	require.Error(err)
	require.Less(elapsed, TEST_TIMEOUT+TEST_MARGIN)
	require.False(session.Connected())
}

func TestSessionAcceptAndClose(t *testing.T) {

	require := require.New(t)

	ln := listen(t, func(conn net.Conn) {
		conn.Close()
	})

	session := NewDeviceSession(WithConnectTimeout(TEST_TIMEOUT), WithReadTimeout(TEST_TIMEOUT))
	require.NoError(session.Connect(ln.Addr().String()))
	require.True(session.Connected())

	start := time.Now()
	line, err := session.Receive()
	require.NoError(err, "closed peer is not an error")
	require.Equal("", line)
	require.Less(time.Since(start), TEST_TIMEOUT+TEST_MARGIN)
	require.True(session.Connected(), "receive does not change the session state")
}

func TestSessionReceiveTimeoutWithoutData(t *testing.T) {

	require := require.New(t)

	hold := make(chan struct{})
	defer close(hold)
	ln := listen(t, func(conn net.Conn) {
		<-hold
		conn.Close()
	})

	session := NewDeviceSession(WithConnectTimeout(TEST_TIMEOUT), WithReadTimeout(TEST_TIMEOUT))
	require.NoError(session.Connect(ln.Addr().String()))

	start := time.Now()
	line, err := session.Receive()
	elapsed := time.Since(start)

	require.NoError(err)
	require.Equal("", line)
	require.GreaterOrEqual(elapsed, TEST_TIMEOUT-50*time.Millisecond, "receive waits for the read timeout")
	require.Less(elapsed, TEST_TIMEOUT+TEST_MARGIN)
}

func TestSessionReceivePartialLine(t *testing.T) {

	require := require.New(t)

	hold := make(chan struct{})
	defer close(hold)
	ln := listen(t, func(conn net.Conn) {
		conn.Write([]byte("+1.2345E"))
		<-hold
		conn.Close()
	})

	session := NewDeviceSession(WithReadTimeout(TEST_TIMEOUT))
	require.NoError(session.Connect(ln.Addr().String()))

	line, err := session.Receive()
	require.NoError(err)
	require.Equal("+1.2345E", line)
}

func TestSessionEcho(t *testing.T) {

	require := require.New(t)

	ln := listen(t, echoInstrument)

	var mu sync.Mutex
	ops := map[string]int{}
	bytes := map[string]int{}
	session := NewDeviceSession(WithReadTimeout(TEST_TIMEOUT), WithInstrument(SessionInstrument{
		RecordTime: func(op string, _ time.Duration, _ error) {
			mu.Lock()
			defer mu.Unlock()
			ops[op]++
		},
		RecordBytes: func(op string, n int) {
			mu.Lock()
			defer mu.Unlock()
			bytes[op] += n
		},
	}))
	require.NoError(session.Connect(ln.Addr().String()))

	peer, err := session.PeerAddress()
	require.NoError(err)
	require.Equal(ln.Addr().String(), peer.String())

	cmd := Expand(CommandDefinition{Template: "OUT<CH> ", AllowedValues: []string{"on"}}, 3, "on", "")
	n, err := session.Send([]byte(cmd))
	require.NoError(err)
	require.Equal(len(cmd), n)

	line, err := session.Receive()
	require.NoError(err)
	require.Equal("OUT3 on\n", line)

	// two lines in one segment are returned one at a time
	_, err = session.Send([]byte("A\nB\n"))
	require.NoError(err)
	first, err := session.Receive()
	require.NoError(err)
	second, err := session.Receive()
	require.NoError(err)
	require.Equal("A\n", first)
	require.Equal("B\n", second)

	mu.Lock()
	require.Equal(1, ops["connect"])
	require.Equal(2, ops["send"])
	require.Equal(3, ops["receive"])
	require.Equal(len(cmd)+4, bytes["send"])
	require.Equal(len(cmd)+4, bytes["receive"])
	mu.Unlock()

	require.NoError(session.Close())
	require.False(session.Connected())
}

func TestSessionReconnectFailureDropsConnection(t *testing.T) {

	require := require.New(t)

	ln := listen(t, echoInstrument)

	session := NewDeviceSession(WithConnectTimeout(TEST_TIMEOUT))
	require.NoError(session.Connect(ln.Addr().String()))
	require.True(session.Connected())

	err := session.Connect(closedPort(t))
	require.ErrorIs(err, ErrConnectionRefused)
	require.False(session.Connected(), "failed connect replaces the previous connection")

	_, err = session.Send([]byte("*RST\n"))
	require.ErrorIs(err, ErrNotConnected)

	// a new attempt is independent of the failure
	require.NoError(session.Connect(ln.Addr().String()))
	require.True(session.Connected())
}

func listen(t *testing.T, handle func(net.Conn)) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return ln
}

func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := ln.Addr().String()
	ln.Close()
	return address
}

func echoInstrument(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if _, err := conn.Write([]byte(line)); err != nil {
			return
		}
	}
}
