package audio

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/repositories"
)

// CaptureFrameSamples is the number of mono samples per outbound chunk.
// At 16 kHz this is 256 ms of speech, small enough to keep the session
// responsive without flooding it.
const CaptureFrameSamples = 4096

// SinkFunc receives one encoded chunk from the capture loop. Implementations
// must not block; chunks they cannot take are theirs to drop.
type SinkFunc func(chunk repositories.EncodedAudioChunk)

// Capture pumps microphone frames to a sink as s16le chunks. One Capture
// drives one device; Start and Stop bracket a single run.
type Capture struct {
	dev    repositories.CaptureDevice
	sink   SinkFunc
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewCapture wires a device to a sink. The sink is called from the capture
// goroutine with chunks tagged CaptureMIMEType.
func NewCapture(dev repositories.CaptureDevice, sink SinkFunc, logger *zap.Logger) *Capture {
	return &Capture{dev: dev, sink: sink, logger: logger}
}

// Start opens the device at the capture rate and begins pumping frames.
// Returns the device's open error unchanged so callers can distinguish a
// denied microphone from transient failures.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if err := c.dev.Open(CaptureSampleRate); err != nil {
		return err
	}
	c.running = true
	c.done = make(chan struct{})
	go c.pump(c.done)
	return nil
}

func (c *Capture) pump(done chan struct{}) {
	defer close(done)

	frame := make([]float32, CaptureFrameSamples)
	for {
		n, err := c.dev.ReadFrame(frame)
		if n > 0 {
			c.sink(repositories.EncodedAudioChunk{
				Data:     Encode(frame[:n]),
				MIMEType: CaptureMIMEType,
			})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && c.logger != nil {
				c.logger.Warn("capture read failed", zap.Error(err))
			}
			return
		}
	}
}

// Stop closes the device and waits for the pump goroutine to exit, so no
// chunk is emitted after Stop returns. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	done := c.done
	c.mu.Unlock()

	if err := c.dev.Close(); err != nil && c.logger != nil {
		c.logger.Warn("capture close failed", zap.Error(err))
	}
	<-done
}

// Running reports whether a capture run is in progress.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
