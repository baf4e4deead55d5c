package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/core/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	COMMAND_SEND    = "send"
	COMMAND_COMMAND = "command"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrEmptyCommand   = errors.New("empty command")
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID("scpiconsole_" + uuid.NewString()[:8])
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:               mqtt.NewClient(opts),
		cfg:                  cfg.MQTT,
		scpiCommandRegexp:    scpiCommandExtractor(cfg.MQTT.BaseTopic),
		textCommandRegexp:    textCommandExtractor(cfg.MQTT.BaseTopic),
		haDiscoveryBaseTopic: cfg.MQTT.HADiscoveryTopic,
	}
}

type MQTTClient struct {
	client               mqtt.Client
	cfg                  config.MQTTConfig
	scpiCommandRegexp    *regexp.Regexp
	textCommandRegexp    *regexp.Regexp
	haDiscoveryBaseTopic string
}

// ParsedMQTTCommand is a command line request received on one of the command topics.
type ParsedMQTTCommand struct {
	Command    string
	Request    service.CommandRequest
	AwaitReply bool
}

type commandPayload struct {
	service.CommandRequest
	AwaitReply bool `json:"await_reply"`
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) TextCommandTopic(id string) string {
	return fmt.Sprintf("%s/text/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) ScpiSendTopic() string {
	return fmt.Sprintf("%s/scpi/%s", c.baseTopic(), COMMAND_SEND)
}

func (c *MQTTClient) ScpiCommandTopic() string {
	return fmt.Sprintf("%s/scpi/%s", c.baseTopic(), COMMAND_COMMAND)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return parseMQTTCommand(c.scpiCommandRegexp, c.textCommandRegexp, msg.Topic(), msg.Payload())
}

func parseMQTTCommand(scpiRegexp, textRegexp *regexp.Regexp, topic string, payload []byte) (*ParsedMQTTCommand, error) {
	if matches := scpiRegexp.FindStringSubmatch(topic); len(matches) == 2 {
		switch matches[1] {
		case COMMAND_SEND:
			return rawCommand(COMMAND_SEND, string(payload))
		case COMMAND_COMMAND:
			var p commandPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
			}
			if p.Command == "" && p.Raw == "" {
				return nil, ErrEmptyCommand
			}
			return &ParsedMQTTCommand{
				Command:    COMMAND_COMMAND,
				Request:    p.CommandRequest,
				AwaitReply: p.AwaitReply,
			}, nil
		}
	}
	if matches := textRegexp.FindStringSubmatch(topic); len(matches) == 2 {
		return rawCommand(matches[1], string(payload))
	}
	return nil, ErrInvalidCommand
}

// raw lines that contain a query expect a reply line
func rawCommand(command, line string) (*ParsedMQTTCommand, error) {
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyCommand
	}
	return &ParsedMQTTCommand{
		Command:    command,
		Request:    service.CommandRequest{Raw: line},
		AwaitReply: strings.Contains(line, "?"),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	filters := map[string]byte{
		fmt.Sprintf("%s/scpi/+", c.baseTopic()):     1,
		fmt.Sprintf("%s/text/+/set", c.baseTopic()): 1,
	}
	token := c.client.SubscribeMultiple(filters, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnected()
}

func scpiCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/scpi/(%s|%s)$", regexp.QuoteMeta(baseTopic), COMMAND_SEND, COMMAND_COMMAND))
}

func textCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/text/([a-zA-Z0-9_]+)/set$", regexp.QuoteMeta(baseTopic)))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
