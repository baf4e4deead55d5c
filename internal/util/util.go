package util

import (
	"github.com/berfenger/scpiconsole/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:    zap.DebugLevel,
		CatalogFile: "psu.yaml",
		Session: config.SessionConfig{
			ConnectTimeoutMillis: 500,
			ReadTimeoutMillis:    500,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "scpiconsole",
			HADiscoveryTopic: "homeassistant",
		},
		Status: config.StatusConfig{
			IntervalSeconds: 0,
		},
		Port: 8080,
	}
}
