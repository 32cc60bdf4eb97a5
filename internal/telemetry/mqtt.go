package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/large-farva/groundstation/internal/config"
	"github.com/large-farva/groundstation/internal/trsp"
)

const publishTimeout = 5 * time.Second

// Publisher forwards run results to an external bus.
type Publisher interface {
	PublishSync(sum trsp.Summary) error
	PublishTLE(elements int, err error) error
	Close()
}

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher posts run summaries as JSON to <prefix>/sync and TLE results
// to <prefix>/tle, QoS 0, not retained.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	log    *log.Logger
}

func clientID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "groundstation_" + hex.EncodeToString(b)
}

// NewMQTTPublisher connects to cfg.Broker. The client reconnects on its own
// after a lost connection; the initial connect is given a few seconds and
// then keeps retrying in the background.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *log.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Printf("mqtt: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("mqtt: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}

	return newMQTTPublisher(client, cfg.TopicPrefix, logger), nil
}

func newMQTTPublisher(c mqttClient, prefix string, logger *log.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: c,
		prefix: strings.TrimRight(prefix, "/"),
		log:    logger,
	}
}

// PublishSync posts sum to <prefix>/sync.
func (p *MQTTPublisher) PublishSync(sum trsp.Summary) error {
	return p.publish("sync", NewSyncFinished(sum))
}

// PublishTLE posts a TLE refresh result to <prefix>/tle.
func (p *MQTTPublisher) PublishTLE(elements int, err error) error {
	return p.publish("tle", NewTLERefreshed(elements, err))
}

func (p *MQTTPublisher) publish(leaf string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := p.prefix + "/" + leaf
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, allowing a short quiesce for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
