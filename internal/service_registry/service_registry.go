package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/iot-relay/internal/registry"
	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/benmeehan/iot-relay/internal/transport/mqttbridge"
	"github.com/benmeehan/iot-relay/internal/transport/socket"
	"github.com/benmeehan/iot-relay/internal/utils"
	"github.com/rs/zerolog"
)

const (
	WebsocketService  = "websocket"
	MQTTBridgeService = "mqtt-bridge"
)

// ServiceRegistry manages the lifecycle of the relay transports.
type ServiceRegistry struct {
	services       map[string]registry.Service // Stores registered services
	serviceKeys    []string                    // Maintains order of service registration
	broker         *relay.Broker
	recorder       relay.Recorder
	metricsHandler http.Handler
	mqttClient     mqttbridge.Client
	Logger         zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// metricsHandler and mqttClient may be nil when the matching feature is disabled.
func NewServiceRegistry(broker *relay.Broker, recorder relay.Recorder, metricsHandler http.Handler,
	mqttClient mqttbridge.Client, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:       make(map[string]registry.Service),
		broker:         broker,
		recorder:       recorder,
		metricsHandler: metricsHandler,
		mqttClient:     mqttClient,
		Logger:         logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Service returns the registered service called name.
func (sr *ServiceRegistry) Service(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds and registers the enabled transports based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    WebsocketService,
			enabled: true,
			constructor: func() (registry.Service, error) {
				opts := socket.Options{
					ListenAddr:     config.Server.ListenAddr,
					WebsocketPath:  config.Server.WebsocketPath,
					AllowedOrigins: config.Server.AllowedOrigins,
					SendQueueSize:  config.Server.SendQueueSize,
					WriteTimeout:   config.Server.WriteTimeout,
					PongWait:       config.Server.PongWait,
					PingPeriod:     config.Server.PingPeriod,
					MaxMessageSize: config.Server.MaxMessageSize,
				}
				if config.Metrics.Enabled && sr.metricsHandler != nil {
					opts.MetricsPath = config.Metrics.Path
					opts.MetricsHandler = sr.metricsHandler
				}
				return socket.NewServer(opts, sr.broker, sr.broker, sr.recorder, sr.Logger), nil
			},
		},
		{
			name:    MQTTBridgeService,
			enabled: config.MQTT.Enabled,
			constructor: func() (registry.Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("mqtt bridge enabled without an MQTT client")
				}
				return mqttbridge.NewBridge(mqttbridge.Options{
					Broker:        config.MQTT.Broker,
					ClientID:      config.MQTT.ClientID,
					CACertificate: config.MQTT.CACertificate,
					DataTopic:     config.MQTT.DataTopic,
					ControlTopic:  config.MQTT.ControlTopic,
					QOS:           config.MQTT.QOS,
				}, sr.mqttClient, sr.broker, sr.Logger), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
