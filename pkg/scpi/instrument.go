package scpi

import "time"

// SessionInstrument receives timing and traffic samples from a DeviceSession.
// Nil hooks are skipped.
type SessionInstrument struct {
	RecordTime  func(op string, duration time.Duration, err error)
	RecordBytes func(op string, n int)
}

func recordTimer(op string, instrument []SessionInstrument) func(err error) {
	if instrument == nil {
		return func(error) {}
	}

	start := time.Now()
	return func(err error) {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(op, duration, err)
			}
		}
	}
}

func recordBytes(op string, n int, instrument []SessionInstrument) {
	if n <= 0 {
		return
	}
	for i := range instrument {
		if instrument[i].RecordBytes != nil {
			instrument[i].RecordBytes(op, n)
		}
	}
}
