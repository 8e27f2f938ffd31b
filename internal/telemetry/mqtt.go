// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes derived samples over MQTT and lets other
// processes (the OLED readout) subscribe to them.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// Encode is the wire payload for one derived sample.
func Encode(d loadcell.Derived) ([]byte, error) {
	return json.Marshal(d)
}

func Decode(payload []byte) (loadcell.Derived, error) {
	var d loadcell.Derived
	if err := json.Unmarshal(payload, &d); err != nil {
		return loadcell.Derived{}, err
	}
	return d, nil
}

func connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", broker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)
	return client, nil
}

// Publisher sends every derived sample to one topic at QoS 0.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(broker, clientID, topic string) (*Publisher, error) {
	client, err := connect(broker, clientID)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish does not wait for the broker; the frame loop must not block on
// the network.
func (p *Publisher) Publish(d loadcell.Derived) {
	payload, err := Encode(d)
	if err != nil {
		log.Printf("telemetry: marshal error: %v", err)
		return
	}
	p.client.Publish(p.topic, 0, false, payload)
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Subscribe calls fn for every sample published on topic until the
// returned client is disconnected.
func Subscribe(broker, clientID, topic string, fn func(loadcell.Derived)) (mqtt.Client, error) {
	client, err := connect(broker, clientID)
	if err != nil {
		return nil, err
	}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		d, err := Decode(msg.Payload())
		if err != nil {
			log.Printf("telemetry: %s unmarshal error: %v", topic, err)
			return
		}
		fn(d)
	})
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("telemetry: subscribe %s: %w", topic, token.Error())
	}
	log.Printf("telemetry: subscribed to %s", topic)
	return client, nil
}
