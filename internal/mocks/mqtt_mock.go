package mocks

import (
	"github.com/benmeehan/iot-relay/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

// MockMQTTClient is a mock implementation of the MQTTClient interface
type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Initialize(broker, clientID, caCertPath string, handlers mqtt.ConnectionHandlers) error {
	args := m.Called(broker, clientID, caCertPath, handlers)
	return args.Error(0)
}

func (m *MockMQTTClient) Connect() MQTT.Token {
	args := m.Called()
	return args.Get(0).(MQTT.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(MQTT.Token)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(MQTT.Token)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) MQTT.Token {
	args := m.Called(topics)
	return args.Get(0).(MQTT.Token)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}
