package publish

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"aes1660-go/internal/device"
	"aes1660-go/internal/nibble"
	"aes1660-go/internal/processing"
	"aes1660-go/internal/types"
)

const publishTimeout = 2 * time.Second

// Summary is the JSON document published per capture. Image holds the
// base64 encoded PGM.
type Summary struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Sum       int     `json:"sum"`
	Live      bool    `json:"live"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Image     string  `json:"image"`
	// Rows is the per-row intensity profile, top to bottom
	Rows      []int   `json:"rows"`
}

type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: c, topic: topic}, nil
}

func (p *MQTTPublisher) WriteCapture(c types.Capture) error {
	msg, err := encodeSummary(c)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, false, msg)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func encodeSummary(c types.Capture) ([]byte, error) {
	var pgm bytes.Buffer
	if err := nibble.WritePGM(&pgm, c.Grid()); err != nil {
		return nil, err
	}
	return json.Marshal(Summary{
		Index:     c.Index,
		Timestamp: c.Timestamp,
		Sum:       c.Sum,
		Live:      c.Sum > device.LivenessCutoff,
		Width:     c.Width,
		Height:    c.Height,
		Image:     base64.StdEncoding.EncodeToString(pgm.Bytes()),
		Rows:      processing.RowProfile(c.Grid()),
	})
}
