package events

import (
	. "github.com/berfenger/scpiconsole/internal/core/domain"
)

// SessionStatusToUpdateEvents maps a session snapshot to the sensor values
// published by the bridge.
func SessionStatusToUpdateEvents(status SessionStatus) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	// Instrument connected
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEVICE_CONNECTED,
		},
		Value: status.Connected,
	})
	// Peer address
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PEER_ADDRESS,
		},
		Value: status.Peer,
	})
	// Last command
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_COMMAND,
		},
		Value: status.LastCommand,
	})
	// Last reply
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_REPLY,
		},
		Value: status.LastReply,
	})
	// Last error
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_ERROR,
		},
		Value: status.LastError,
	})

	return events
}

func BridgeStateUpdateEvents(online bool) SensorUpdateEvent {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
