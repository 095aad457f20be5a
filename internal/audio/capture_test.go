package audio

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jansahayak/agent/domain/repositories"
)

// scriptedMic serves a fixed sequence of frames, then EOF. Close unblocks
// any pending ReadFrame.
type scriptedMic struct {
	mu       sync.Mutex
	frames   [][]float32
	openRate int
	closed   chan struct{}
	once     sync.Once
}

func newScriptedMic(frames ...[]float32) *scriptedMic {
	return &scriptedMic{frames: frames, closed: make(chan struct{})}
}

func (m *scriptedMic) Open(sampleRate int) error {
	m.mu.Lock()
	m.openRate = sampleRate
	m.mu.Unlock()
	return nil
}

func (m *scriptedMic) ReadFrame(dst []float32) (int, error) {
	m.mu.Lock()
	if len(m.frames) > 0 {
		f := m.frames[0]
		m.frames = m.frames[1:]
		m.mu.Unlock()
		return copy(dst, f), nil
	}
	m.mu.Unlock()
	// Out of scripted frames: block until Close, like a quiet microphone.
	<-m.closed
	return 0, io.EOF
}

func (m *scriptedMic) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func collectChunks() (SinkFunc, func() []repositories.EncodedAudioChunk) {
	var mu sync.Mutex
	var got []repositories.EncodedAudioChunk
	sink := func(c repositories.EncodedAudioChunk) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}
	return sink, func() []repositories.EncodedAudioChunk {
		mu.Lock()
		defer mu.Unlock()
		return append([]repositories.EncodedAudioChunk(nil), got...)
	}
}

func TestCaptureEncodesFrames(t *testing.T) {
	frame := make([]float32, CaptureFrameSamples)
	frame[0] = 0.5
	frame[1] = -0.5
	mic := newScriptedMic(frame)

	sink, chunks := collectChunks()
	c := NewCapture(mic, sink, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	deadline := time.After(time.Second)
	for len(chunks()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no chunk arrived")
		case <-time.After(time.Millisecond):
		}
	}

	got := chunks()[0]
	if got.MIMEType != CaptureMIMEType {
		t.Errorf("mime = %q, want %q", got.MIMEType, CaptureMIMEType)
	}
	if want := CaptureFrameSamples * BytesPerSample; len(got.Data) != want {
		t.Errorf("chunk size = %d, want %d", len(got.Data), want)
	}
	if mic.openRate != CaptureSampleRate {
		t.Errorf("open rate = %d, want %d", mic.openRate, CaptureSampleRate)
	}

	decoded, err := Decode(got.Data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded[0] < 0.49 || decoded[0] > 0.51 {
		t.Errorf("decoded[0] = %v, want ~0.5", decoded[0])
	}
}

func TestCaptureStopIsDeterministic(t *testing.T) {
	mic := newScriptedMic()
	sink, chunks := collectChunks()
	c := NewCapture(mic, sink, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Running() {
		t.Fatal("Running() = false after Start")
	}

	c.Stop()
	if c.Running() {
		t.Error("Running() = true after Stop")
	}
	n := len(chunks())

	// Stop already waited for the pump; nothing may trickle in afterwards.
	time.Sleep(10 * time.Millisecond)
	if got := len(chunks()); got != n {
		t.Errorf("chunks after Stop = %d, want %d", got, n)
	}

	// Idempotent.
	c.Stop()
}

func TestCaptureStartPropagatesOpenError(t *testing.T) {
	c := NewCapture(&deniedMic{}, func(repositories.EncodedAudioChunk) {}, nil)
	if err := c.Start(); err == nil {
		t.Fatal("Start succeeded on a denied device")
	}
	if c.Running() {
		t.Error("Running() = true after failed Start")
	}
}

type deniedMic struct{}

func (deniedMic) Open(int) error                   { return io.ErrClosedPipe }
func (deniedMic) ReadFrame([]float32) (int, error) { return 0, io.EOF }
func (deniedMic) Close() error                     { return nil }
