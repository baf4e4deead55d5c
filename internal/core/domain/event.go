package domain

import "fmt"

const (
	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"

	SENSOR_ID_BRIDGE_STATE     = "bridge_state"
	SENSOR_ID_DEVICE_CONNECTED = "device_connected"
	SENSOR_ID_PEER_ADDRESS     = "peer_address"
	SENSOR_ID_LAST_COMMAND     = "last_command"
	SENSOR_ID_LAST_REPLY       = "last_reply"
	SENSOR_ID_LAST_ERROR       = "last_error"

	TEXT_ID_RAW_COMMAND = "raw_command"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// SessionStatusChangedEvent is published on the event stream after every
// session operation.
type SessionStatusChangedEvent struct {
	Status SessionStatus
}
