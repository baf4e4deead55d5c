package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel    zapcore.Level
	CatalogFile string        `mapstructure:"catalog_file"`
	Session     SessionConfig `mapstructure:"session"`
	MQTT        MQTTConfig    `mapstructure:"mqtt"`
	Status      StatusConfig  `mapstructure:"status"`
	Port        uint          `mapstructure:"port"`
	HttpLog     bool          `mapstructure:"http_log"`
	Console     bool          `mapstructure:"console"`
}

type SessionConfig struct {
	ConnectTimeoutMillis uint32 `mapstructure:"connect_timeout_millis"`
	ReadTimeoutMillis    uint32 `mapstructure:"read_timeout_millis"`
	WriteTimeoutMillis   uint32 `mapstructure:"write_timeout_millis"`
	AutoConnect          bool   `mapstructure:"auto_connect"`
	// overrides the catalog device address for auto connect
	Address string
}

type StatusConfig struct {
	IntervalSeconds uint32 `mapstructure:"interval_seconds"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c SessionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMillis) * time.Millisecond
}

func (c SessionConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

func (c SessionConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMillis) * time.Millisecond
}

// OperationTimeout bounds one session operation seen from the actor layer.
func (c SessionConfig) OperationTimeout() time.Duration {
	longest := max(c.ConnectTimeout(), c.ReadTimeout(), c.WriteTimeout())
	return longest + 500*time.Millisecond
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

func (c *Config) Validate() error {
	if c.CatalogFile == "" {
		return errors.New("config param catalog_file is required")
	}
	if c.Session.ConnectTimeoutMillis < 100 {
		return errors.New("config param session.connect_timeout_millis should be >= 100")
	}
	if c.Session.ReadTimeoutMillis < 100 {
		return errors.New("config param session.read_timeout_millis should be >= 100")
	}
	if c.Port == 0 || c.Port > 65535 {
		return errors.New("config param port should be in 1..65535")
	}
	if c.MQTT.Enable {
		baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		c.MQTT.BaseTopic = baseTopic

		hadBaseTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		c.MQTT.HADiscoveryTopic = hadBaseTopic
	}
	return nil
}
