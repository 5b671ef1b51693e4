package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/iot-relay/internal/metrics"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/benmeehan/iot-relay/internal/service_registry"
	"github.com/benmeehan/iot-relay/internal/transport/mqttbridge"
	"github.com/benmeehan/iot-relay/internal/utils"
	"github.com/benmeehan/iot-relay/pkg/file"
	"github.com/benmeehan/iot-relay/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file, then environment
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = newLogger(config)

	var (
		recorder       relay.Recorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
	)
	if config.Metrics.Enabled {
		relayMetrics := metrics.NewRelayMetrics()
		recorder = relayMetrics
		metricsHandler = relayMetrics.Handler()
	}

	broker := relay.NewBroker(recorder, log)

	var mqttClient mqttbridge.Client
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Msgf("Using MQTT Client ID: %s", config.MQTT.ClientID)
		mqttClient = mqtt.NewMqttService(fileClient)
	}

	// Create a new service registry to manage the transports
	serviceRegistry := service_registry.NewServiceRegistry(broker, recorder, metricsHandler, mqttClient, log)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
		os.Exit(1)
	}
	log.Info().Msg("Relay stopped")
}

func newLogger(config *utils.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Log.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
