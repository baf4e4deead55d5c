package events

import (
	"testing"

	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	events := SessionStatusToUpdateEvents(domain.SessionStatus{
		Connected:   true,
		Peer:        "192.168.1.50:5025",
		LastCommand: "*IDN?",
		LastReply:   "ACME,PSU3000,1234,1.0",
	})

	assert.Len(events, 5)
	values := map[string]any{}
	for _, e := range events {
		switch ev := e.(type) {
		case domain.BinarySensorUpdateEvent:
			values[ev.SensorId()] = ev.Value
		case domain.TextSensorUpdateEvent:
			values[ev.SensorId()] = ev.Value
		}
	}
	assert.Equal(true, values[domain.SENSOR_ID_DEVICE_CONNECTED])
	assert.Equal("192.168.1.50:5025", values[domain.SENSOR_ID_PEER_ADDRESS])
	assert.Equal("*IDN?", values[domain.SENSOR_ID_LAST_COMMAND])
	assert.Equal("ACME,PSU3000,1234,1.0", values[domain.SENSOR_ID_LAST_REPLY])
	assert.Equal("", values[domain.SENSOR_ID_LAST_ERROR])
}

func TestInstrumentEntities(t *testing.T) {

	assert := assert.New(t)

	bridge := BridgeDevice("scpiconsole")
	instrument := InstrumentDevice(scpi.Device{Address: "192.168.1.50:5025", Channels: 3})
	instrument.ViaDevice = bridge.Id

	assert.Equal(bridge.Id, BridgeDevice("scpiconsole").Id, "stable id")
	assert.NotEqual(bridge.Id, BridgeDevice("other").Id)
	assert.Equal("3 channel instrument", instrument.Model)

	sensors := InstrumentSensors(instrument)
	assert.Len(sensors, 5)
	assert.Equal(bridge.Id, sensors[0].Device.ViaDevice, "first entity carries the full device")
	assert.Empty(sensors[1].Device.ViaDevice)

	texts := InstrumentTexts(instrument)
	assert.Len(texts, 1)
	assert.Equal(domain.TEXT_ID_RAW_COMMAND, texts[0].Id)
}
