// Package publish fans captures out to other processes.
package publish

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"aes1660-go/internal/types"
)

// ZMQPublisher pushes every capture as a CBOR types.FrameMessage.
type ZMQPublisher struct {
	mu     sync.Mutex
	socket *zmq4.Socket
}

// NewZMQPublisher connects a PUSH socket to endpoint; a viewer binds the
// matching PULL side.
func NewZMQPublisher(endpoint string) (*ZMQPublisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	// do not block shutdown on an absent viewer
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetSndhwm(256); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &ZMQPublisher{socket: socket}, nil
}

func (p *ZMQPublisher) WriteCapture(c types.Capture) error {
	payload, err := encodeFrame(c)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.socket.SendBytes(payload, zmq4.DONTWAIT)
	return err
}

func (p *ZMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socket.Close()
}

func encodeFrame(c types.Capture) ([]byte, error) {
	c.Raw = nil
	return cbor.Marshal(types.FrameMessage{Type: types.MessageFrame, Capture: c})
}
