package scpi

import (
	"errors"
	"net"
	"os"
	"syscall"
)

type ConfigErrorKind int

const (
	NotFound ConfigErrorKind = iota + 1
	ParseError
	SchemaMismatch
)

func (k ConfigErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case ParseError:
		return "parse error"
	case SchemaMismatch:
		return "schema mismatch"
	default:
		return "unknown"
	}
}

// ConfigError is returned by the catalog loaders. No partial catalog is ever
// returned alongside it.
type ConfigError struct {
	Kind  ConfigErrorKind
	Path  string
	Field string
	Err   error
}

var (
	ErrCatalogNotFound       = &ConfigError{Kind: NotFound}
	ErrCatalogParse          = &ConfigError{Kind: ParseError}
	ErrCatalogSchemaMismatch = &ConfigError{Kind: SchemaMismatch}
)

func (e *ConfigError) Error() string {
	msg := "catalog " + e.Kind.String()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches any ConfigError of the same kind.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	return ok && t.Kind == e.Kind
}

type IoErrorKind int

const (
	Other IoErrorKind = iota
	NotConnected
	TimedOut
	ConnectionRefused
	AddressInUse
)

func (k IoErrorKind) String() string {
	switch k {
	case NotConnected:
		return "not connected"
	case TimedOut:
		return "timed out"
	case ConnectionRefused:
		return "connection refused"
	case AddressInUse:
		return "address in use"
	default:
		return "i/o error"
	}
}

// IoError is returned by every DeviceSession operation that can fail.
type IoError struct {
	Kind IoErrorKind
	Op   string
	Addr string
	Err  error
}

var (
	ErrNotConnected      = &IoError{Kind: NotConnected}
	ErrTimedOut          = &IoError{Kind: TimedOut}
	ErrConnectionRefused = &IoError{Kind: ConnectionRefused}
	ErrAddressInUse      = &IoError{Kind: AddressInUse}
)

func (e *IoError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Addr != "" {
		msg += " (" + e.Addr + ")"
	}
	if e.Err != nil && e.Kind != NotConnected {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// Is matches any IoError of the same kind.
func (e *IoError) Is(target error) bool {
	t, ok := target.(*IoError)
	return ok && t.Kind == e.Kind
}

func notConnected(op string) error {
	return &IoError{Kind: NotConnected, Op: op}
}

func newIoError(op, addr string, err error) error {
	return &IoError{Kind: classify(err), Op: op, Addr: addr, Err: err}
}

func classify(err error) IoErrorKind {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused
	case errors.Is(err, syscall.EADDRINUSE):
		return AddressInUse
	case errors.Is(err, syscall.ENOTCONN), errors.Is(err, net.ErrClosed):
		return NotConnected
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return TimedOut
	case errors.As(err, &netErr) && netErr.Timeout():
		return TimedOut
	default:
		return Other
	}
}

// ErrorKind returns the IoErrorKind of err, or Other when err is not an IoError.
func ErrorKind(err error) IoErrorKind {
	var ioErr *IoError
	if errors.As(err, &ioErr) {
		return ioErr.Kind
	}
	return Other
}
