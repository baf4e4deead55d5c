package port

import (
	"net"

	"github.com/berfenger/scpiconsole/pkg/scpi"
)

// DeviceSession is the single instrument connection owned by the session actor.
type DeviceSession interface {
	Connect(address string) error
	Send(data []byte) (int, error)
	Receive() (string, error)
	Connected() bool
	PeerAddress() (net.Addr, error)
	Close() error
}

// ensure interface compliance
var (
	_ DeviceSession = (*scpi.DeviceSession)(nil)
	_ DeviceSession = (*scpi.TestDeviceSession)(nil)
)
