package scpi

import (
	"net"
	"sync"
	"syscall"
	"time"
)

// TestDeviceSession is an in-memory stand-in for DeviceSession. Sent data is
// echoed back by Receive unless Replies holds scripted answers.
type TestDeviceSession struct {
	// addresses that refuse connections
	Refuse map[string]bool
	// scripted replies, consumed before the echo queue
	Replies []string
	// applied to every operation
	Delay time.Duration

	mu        sync.Mutex
	sent      []string
	pending   []string
	address   string
	connected bool
}

type testAddr string

func (a testAddr) Network() string { return "tcp" }
func (a testAddr) String() string  { return string(a) }

func (s *TestDeviceSession) Connect(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wait()
	s.connected = false
	s.address = ""
	s.pending = nil
	if s.Refuse[address] {
		return &IoError{Kind: ConnectionRefused, Op: "connect", Addr: address, Err: syscall.ECONNREFUSED}
	}
	s.connected = true
	s.address = address
	return nil
}

func (s *TestDeviceSession) Send(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wait()
	if !s.connected {
		return 0, notConnected("send")
	}
	s.sent = append(s.sent, string(data))
	s.pending = append(s.pending, string(data))
	return len(data), nil
}

func (s *TestDeviceSession) Receive() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wait()
	if !s.connected {
		return "", notConnected("receive")
	}
	if len(s.Replies) > 0 {
		reply := s.Replies[0]
		s.Replies = s.Replies[1:]
		return reply, nil
	}
	if len(s.pending) > 0 {
		reply := s.pending[0]
		s.pending = s.pending[1:]
		return reply, nil
	}
	return "", nil
}

func (s *TestDeviceSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *TestDeviceSession) PeerAddress() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, notConnected("peer address")
	}
	return testAddr(s.address), nil
}

func (s *TestDeviceSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.pending = nil
	return nil
}

// Sent returns a copy of everything written so far.
func (s *TestDeviceSession) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *TestDeviceSession) wait() {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
}
