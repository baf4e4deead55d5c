package scpi

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_CONNECT_TIMEOUT = 1 * time.Second
	DEFAULT_READ_TIMEOUT    = 1 * time.Second
)

// DeviceSession holds at most one TCP connection to an instrument.
// Every operation holds the session lock until it completes or times out,
// so at most one network operation is in flight at any time.
type DeviceSession struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	instrument     []SessionInstrument
	logger         *zap.Logger
}

type SessionOption func(*DeviceSession)

func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(s *DeviceSession) {
		s.connectTimeout = timeout
	}
}

func WithReadTimeout(timeout time.Duration) SessionOption {
	return func(s *DeviceSession) {
		s.readTimeout = timeout
	}
}

// WithWriteTimeout bounds a single Send. Zero disables the deadline.
func WithWriteTimeout(timeout time.Duration) SessionOption {
	return func(s *DeviceSession) {
		s.writeTimeout = timeout
	}
}

func WithInstrument(instrument SessionInstrument) SessionOption {
	return func(s *DeviceSession) {
		s.instrument = append(s.instrument, instrument)
	}
}

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *DeviceSession) {
		s.logger = logger
	}
}

func NewDeviceSession(opts ...SessionOption) *DeviceSession {
	s := &DeviceSession{
		connectTimeout: DEFAULT_CONNECT_TIMEOUT,
		readTimeout:    DEFAULT_READ_TIMEOUT,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials address once within the connect timeout. Any previous
// connection is dropped first, so a failed attempt always leaves the session
// disconnected.
func (s *DeviceSession) Connect(address string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := recordTimer("connect", s.instrument)
	defer func() { done(err) }()

	s.dropLocked()

	dialer := net.Dialer{Timeout: s.connectTimeout}
	conn, dialErr := dialer.Dial("tcp", address)
	if dialErr != nil {
		s.logger.Debug("session: connect failed", zap.String("address", address), zap.Error(dialErr))
		return newIoError("connect", address, dialErr)
	}
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.logger.Debug("session: connected", zap.String("address", address), zap.Stringer("peer", conn.RemoteAddr()))
	return nil
}

// Send writes data with a single write call.
func (s *DeviceSession) Send(data []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, notConnected("send")
	}
	done := recordTimer("send", s.instrument)
	defer func() { done(err) }()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, newIoError("send", s.peer(), err)
		}
	}
	n, err = s.conn.Write(data)
	recordBytes("send", n, s.instrument)
	if err != nil {
		return n, newIoError("send", s.peer(), err)
	}
	return n, nil
}

// Receive reads up to and including the next newline. When the read timeout
// elapses or the peer closes, whatever arrived so far is returned without an
// error, possibly an empty string.
func (s *DeviceSession) Receive() (line string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return "", notConnected("receive")
	}
	done := recordTimer("receive", s.instrument)
	defer func() { done(err) }()

	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return "", newIoError("receive", s.peer(), err)
		}
	}
	line, readErr := s.reader.ReadString('\n')
	recordBytes("receive", len(line), s.instrument)
	if readErr == nil || errors.Is(readErr, io.EOF) || classify(readErr) == TimedOut {
		return line, nil
	}
	return line, newIoError("receive", s.peer(), readErr)
}

// Connected reports whether a connection is held. The peer is not checked.
func (s *DeviceSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *DeviceSession) PeerAddress() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, notConnected("peer address")
	}
	return s.conn.RemoteAddr(), nil
}

// Close releases the connection on teardown.
func (s *DeviceSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropLocked()
}

func (s *DeviceSession) dropLocked() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	return err
}

func (s *DeviceSession) peer() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}
