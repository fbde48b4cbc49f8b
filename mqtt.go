package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// MQTTOptions configures the optional MQTT publisher. An empty broker disables it.
type MQTTOptions struct {
	Broker         string        `json:"broker" mapstructure:"broker"`
	Topic          string        `json:"topic" mapstructure:"topic"`
	ClientID       string        `json:"client-id" mapstructure:"client-id"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"password" mapstructure:"password"`
	QoS            int           `json:"qos" mapstructure:"qos"`
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
}

func NewMQTTOptions() *MQTTOptions {
	return &MQTTOptions{
		Topic:          "tier/nearest_scooter/state",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
	}
}

func (o *MQTTOptions) Enabled() bool {
	return o != nil && o.Broker != ""
}

func (o *MQTTOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}
	var errs []error
	if o.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic must not be empty"))
	}
	if o.QoS < 0 || o.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", o.QoS))
	}
	if o.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("mqtt.connect-timeout must be positive, got %s", o.ConnectTimeout))
	}
	return errs
}

func (o *MQTTOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "MQTT broker URL (e.g. tcp://localhost:1883). Empty disables MQTT publishing.")
	fs.StringVar(&o.Topic, "mqtt.topic", o.Topic, "Topic the reading is published to as a retained message.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "MQTT client id. Generated when empty.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "MQTT username.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "MQTT password.")
	fs.IntVar(&o.QoS, "mqtt.qos", o.QoS, "MQTT quality of service for published readings.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for connecting to the MQTT broker.")
}

// mqttPublisher publishes every completed reading as a retained JSON message.
type mqttPublisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	log     Logger
}

func newMQTTPublisher(opts *MQTTOptions, log Logger) (*mqttPublisher, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "tier-nearest-scooter-" + uuid.NewString()
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	routeMQTTLogs(log.Logr())
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	c := mqtt.NewClient(co)
	token := c.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, err)
	}
	log.Info("connected to mqtt broker", "broker", opts.Broker, "clientID", clientID)
	return newMQTTPublisherWithClient(c, opts, log), nil
}

func newMQTTPublisherWithClient(c mqtt.Client, opts *MQTTOptions, log Logger) *mqttPublisher {
	return &mqttPublisher{
		client:  c,
		topic:   opts.Topic,
		qos:     byte(opts.QoS),
		timeout: opts.ConnectTimeout,
		log:     log,
	}
}

// Publish implements ReadingPublisher.
func (p *mqttPublisher) Publish(_ context.Context, r Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		p.log.Error(err, "failed to encode reading for mqtt")
		return
	}
	token := p.client.Publish(p.topic, p.qos, true, payload)
	if !token.WaitTimeout(p.timeout) {
		p.log.Warn("mqtt publish timed out", "topic", p.topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Error(err, "failed to publish reading", "topic", p.topic)
	}
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// pahoLogger feeds paho's package level loggers into logr.
type pahoLogger struct {
	log logr.Logger
	err bool
}

func (l pahoLogger) Println(v ...any) {
	l.write(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.write(fmt.Sprintf(format, v...))
}

func (l pahoLogger) write(msg string) {
	if l.err {
		l.log.Error(nil, msg)
		return
	}
	l.log.Info(msg)
}

// routeMQTTLogs replaces paho's discarding loggers. Debug output lands at V(1).
func routeMQTTLogs(l logr.Logger) {
	l = l.WithName("paho")
	mqtt.CRITICAL = pahoLogger{log: l, err: true}
	mqtt.ERROR = pahoLogger{log: l, err: true}
	mqtt.WARN = pahoLogger{log: l}
	mqtt.DEBUG = pahoLogger{log: l.V(1)}
}
