package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"urdfpanel/internal/logging"
)

// mqttClient is the part of mqtt.Client a source uses.
type mqttClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTTSource subscribes to a topic and decodes every message with DecodeJSON.
type MQTTSource struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Log      logging.Log

	decodeErrors atomic.Uint64
	newClient    func(*mqtt.ClientOptions) mqttClient
}

func NewMQTTSource(broker, topic, clientID string, log logging.Log) *MQTTSource {
	if clientID == "" {
		clientID = "urdfpanel-" + uuid.NewString()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &MQTTSource{Broker: broker, Topic: topic, ClientID: clientID, QoS: 0, Log: log}
}

// DecodeErrors reports how many messages failed to decode.
func (s *MQTTSource) DecodeErrors() uint64 { return s.decodeErrors.Load() }

// Run connects, subscribes and forwards frames until ctx is done.
func (s *MQTTSource) Run(ctx context.Context, sink Sink) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(10 * time.Second)

	var client mqttClient
	opts.OnConnect = func(mqtt.Client) {
		s.Log.Infof("connected broker=%s client_id=%s", s.Broker, s.ClientID)
		// Clean sessions drop subscriptions, so every (re)connect subscribes.
		tok := client.Subscribe(s.Topic, s.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			s.handle(msg, sink)
		})
		go func() {
			if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				s.Log.Errorf("subscribe %s: %v", s.Topic, tok.Error())
			}
		}()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.Log.Warnf("connection lost broker=%s: %v", s.Broker, err)
	}

	newClient := s.newClient
	if newClient == nil {
		newClient = func(o *mqtt.ClientOptions) mqttClient { return mqtt.NewClient(o) }
	}
	client = newClient(opts)

	s.Log.Infof("connecting broker=%s topic=%s", s.Broker, s.Topic)
	tok := client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", s.Broker, err)
		}
	case <-ctx.Done():
		client.Disconnect(250)
		return ctx.Err()
	}

	<-ctx.Done()
	client.Disconnect(250)
	s.Log.Infof("disconnected broker=%s", s.Broker)
	return nil
}

func (s *MQTTSource) handle(msg mqtt.Message, sink Sink) {
	f, err := DecodeJSON(msg.Payload())
	if err != nil {
		if s.decodeErrors.Add(1) == 1 || s.Log.DebugEnabled() {
			s.Log.Warnf("drop message topic=%s: %v", msg.Topic(), err)
		}
		return
	}
	f.At = time.Now()
	sink(f)
}
