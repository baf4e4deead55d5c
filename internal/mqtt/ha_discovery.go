package mqtt

import (
	"fmt"

	"github.com/berfenger/scpiconsole/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device           HADiscoveryDevice `json:"device"`
	StateTopic       string            `json:"state_topic,omitempty"`
	CommandTopic     string            `json:"command_topic,omitempty"`
	DeviceClass      string            `json:"device_class,omitempty"`
	AvTopic          string            `json:"availability_topic,omitempty"`
	EntityCategory   string            `json:"entity_category,omitempty"`
	Name             string            `json:"name"`
	UniqueId         string            `json:"unique_id"`
	Platform         string            `json:"platform"`
	EnabledByDefault *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn        string            `json:"payload_on,omitempty"`
	PayloadOff       string            `json:"payload_off,omitempty"`
	Icon             string            `json:"icon,omitempty"`
	Max              int               `json:"max,omitempty"`
	Mode             string            `json:"mode,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func (c *MQTTClient) HADiscoverySensorTopic(sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.haDiscoveryBaseTopic, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func (c *MQTTClient) HADiscoveryTextTopic(text domain.GenericText) string {
	return fmt.Sprintf("%s/text/%s/%s/config", c.haDiscoveryBaseTopic, text.Device.Id, text.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:           dev,
		StateTopic:       topic,
		DeviceClass:      sensor.DeviceClass,
		AvTopic:          client.BridgeStateTopic(),
		EntityCategory:   sensor.EntityCategory,
		Name:             sensor.Name,
		UniqueId:         sensor.UniqueId,
		Icon:             sensor.Icon,
		EnabledByDefault: sensor.EnabledByDefault,
		Platform:         "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		// the bridge state is always reachable
		disConfig.AvTopic = ""
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericTextToHADiscoveryMessage(client *MQTTClient, text domain.GenericText) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(text.Device),
		CommandTopic: client.TextCommandTopic(text.Id),
		AvTopic:      client.BridgeStateTopic(),
		Name:         text.Name,
		UniqueId:     text.UniqueId,
		Icon:         text.Icon,
		Platform:     "mqtt",
		Max:          text.Max,
		Mode:         "text",
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
