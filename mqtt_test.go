package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zapcore"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                       { return true }
func (t *doneToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeMQTTClient records publishes; other mqtt.Client methods are not used.
type fakeMQTTClient struct {
	mqtt.Client
	published    []publishedMessage
	err          error
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, publishedMessage{topic, qos, retained, payload.([]byte)})
	return &doneToken{err: c.err}
}

func (c *fakeMQTTClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTPublisherPublishesRetainedReading(t *testing.T) {
	client := &fakeMQTTClient{}
	opts := NewMQTTOptions()
	opts.Topic = "home/scooter"
	pub := newMQTTPublisherWithClient(client, opts, NewNopLogger())

	state := 123
	pub.Publish(context.Background(), Reading{
		Name:       "Tier Nearest Scooter",
		State:      &state,
		Attributes: &Attributes{Latitude: 52.1, Longitude: 13.2, BatteryLevel: 40, Attribution: Attribution},
	})

	if len(client.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "home/scooter" || msg.qos != 1 || !msg.retained {
		t.Fatalf("unexpected publish %+v", msg)
	}
	var got Reading
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not a reading: %v", err)
	}
	if got.State == nil || *got.State != 123 || got.Attributes.BatteryLevel != 40 {
		t.Fatalf("unexpected payload %+v", got)
	}

	pub.Close()
	if !client.disconnected {
		t.Fatal("expected Close to disconnect the client")
	}
}

func TestMQTTPublisherLogsPublishError(t *testing.T) {
	client := &fakeMQTTClient{err: errors.New("not connected")}
	log, logs := newObservedLogger()
	pub := newMQTTPublisherWithClient(client, NewMQTTOptions(), log)

	pub.Publish(context.Background(), Reading{Name: "x"})

	if logs.FilterMessage("failed to publish reading").Len() != 1 {
		t.Fatalf("expected publish error to be logged, got %v", logs.All())
	}
}

func TestMQTTOptionsValidate(t *testing.T) {
	o := NewMQTTOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("disabled options should validate, got %v", errs)
	}
	o.Broker = "tcp://localhost:1883"
	o.Topic = ""
	o.QoS = 5
	if errs := o.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestRouteMQTTLogs(t *testing.T) {
	prevCritical, prevError, prevWarn, prevDebug := mqtt.CRITICAL, mqtt.ERROR, mqtt.WARN, mqtt.DEBUG
	t.Cleanup(func() {
		mqtt.CRITICAL, mqtt.ERROR, mqtt.WARN, mqtt.DEBUG = prevCritical, prevError, prevWarn, prevDebug
	})

	log, logs := newObservedLogger()
	routeMQTTLogs(log.Logr())

	mqtt.ERROR.Println("[client]", "connection refused")
	mqtt.DEBUG.Printf("[net] %d bytes queued", 12)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", entries)
	}
	if e := entries[0]; e.Level != zapcore.ErrorLevel || e.Message != "[client] connection refused" || e.LoggerName != "paho" {
		t.Errorf("unexpected error entry %+v", e)
	}
	if e := entries[1]; e.Level != zapcore.DebugLevel || e.Message != "[net] 12 bytes queued" {
		t.Errorf("unexpected debug entry %+v", e)
	}
}
