package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/scpiconsole/internal/adapter/actor"
	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/console"
	"github.com/berfenger/scpiconsole/internal/core/actor"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/port"
	"github.com/berfenger/scpiconsole/internal/monitor"
	"github.com/berfenger/scpiconsole/internal/server"
	"github.com/berfenger/scpiconsole/internal/util/actorutil"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(ctx context.Context, apiServer *http.Server, done chan bool) {
	// Listen for the interrupt signal or the console exit.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	versioninfo.AddFlag(nil)
	flag.Parse()

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// the catalog is required, its errors are printed as they are
	catalog, err := scpi.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Session.Address == "" {
		cfg.Session.Address = catalog.Device.Address
	}

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	metrics := monitor.NewSessionMetrics()
	session := scpi.NewDeviceSession(
		scpi.WithConnectTimeout(cfg.Session.ConnectTimeout()),
		scpi.WithReadTimeout(cfg.Session.ReadTimeout()),
		scpi.WithWriteTimeout(cfg.Session.WriteTimeout()),
		scpi.WithInstrument(metrics.Instrument()),
		scpi.WithLogger(logger.Named("scpi")),
	)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	root := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, catalog, sessionActorProvider(cfg, session, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("failed to spawn master actor", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := server.NewServer(*cfg, catalog, metrics.Handler(), root, pid, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(ctx, apiServer, done)

	if cfg.Console {
		con, err := console.New(catalog, 4*cfg.Session.OperationTimeout(), root, pid, logger)
		if err != nil {
			logger.Error("failed to start console", zap.Error(err))
			stop()
		} else {
			go con.Run(ctx, stop)
		}
	}

	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	root.StopFuture(pid).Wait()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SCPICONSOLE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SCPICONSOLE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("scpiconsole")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))
	cfg.Session.Address = viper.GetString("session.address")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func sessionActorProvider(cfg *config.Config, session port.DeviceSession, logger *zap.Logger) actor.SessionActorProvider {
	return func(es *eventstream.EventStream) *adactor.DeviceSessionActor {
		return adactor.NewDeviceSessionActor(cfg, session, es, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("catalog_file", "catalog.yaml")
	viper.SetDefault("session.connect_timeout_millis", 1000)
	viper.SetDefault("session.read_timeout_millis", 1000)
	viper.SetDefault("session.write_timeout_millis", 1000)
	viper.SetDefault("session.auto_connect", false)
	viper.SetDefault("session.address", "")
	viper.SetDefault("status.interval_seconds", 0)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "scpiconsole")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("console", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
