package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/carlmjohnson/versioninfo"
)

const (
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	RAW_COMMAND_MAX_LENGTH    = 255
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("scpiconsole_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "SCPI Console",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SCPI Console %s", md5HashShort(baseTopic)),
	}
}

func InstrumentDevice(device scpi.Device) Device {
	return Device{
		Id:    fmt.Sprintf("scpi_instrument_%s", md5HashShort(device.Address)),
		Model: fmt.Sprintf("%d channel instrument", device.Channels),
		Name:  fmt.Sprintf("SCPI instrument %s", device.Address),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func InstrumentSensors(instrumentDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:      instrumentDevice,
		Id:          SENSOR_ID_DEVICE_CONNECTED,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Instrument connected",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(instrumentDevice.Id, SENSOR_ID_DEVICE_CONNECTED),
	})
	sensors = append(sensors, GenericSensor{
		Device:         IdDevice(instrumentDevice),
		Id:             SENSOR_ID_PEER_ADDRESS,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Peer address",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:ip-network",
		UniqueId:       uniqueId(instrumentDevice.Id, SENSOR_ID_PEER_ADDRESS),
	})
	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(instrumentDevice),
		Id:         SENSOR_ID_LAST_COMMAND,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Last command",
		Icon:       "mdi:console-line",
		UniqueId:   uniqueId(instrumentDevice.Id, SENSOR_ID_LAST_COMMAND),
	})
	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(instrumentDevice),
		Id:         SENSOR_ID_LAST_REPLY,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Last reply",
		Icon:       "mdi:message-reply-text",
		UniqueId:   uniqueId(instrumentDevice.Id, SENSOR_ID_LAST_REPLY),
	})
	sensors = append(sensors, GenericSensor{
		Device:           IdDevice(instrumentDevice),
		Id:               SENSOR_ID_LAST_ERROR,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Last error",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(instrumentDevice.Id, SENSOR_ID_LAST_ERROR),
	})

	return sensors
}

func InstrumentTexts(instrumentDevice Device) []GenericText {
	return []GenericText{{
		Device:   IdDevice(instrumentDevice),
		Id:       TEXT_ID_RAW_COMMAND,
		Name:     "Raw command",
		Icon:     "mdi:send",
		Max:      RAW_COMMAND_MAX_LENGTH,
		UniqueId: uniqueId(instrumentDevice.Id, TEXT_ID_RAW_COMMAND),
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
