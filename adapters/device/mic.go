package device

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// MicOptions configures the ffmpeg capture process.
type MicOptions struct {
	// FFmpegPath defaults to "ffmpeg" on PATH.
	FFmpegPath string
	// InputFormat is the ffmpeg demuxer (alsa, pulse, avfoundation). Empty
	// picks a platform default.
	InputFormat string
	// InputDevice is the device argument for the demuxer.
	InputDevice string
}

func (o *MicOptions) applyDefaults() {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.InputFormat == "" {
		if runtime.GOOS == "darwin" {
			o.InputFormat = "avfoundation"
		} else {
			o.InputFormat = "pulse"
		}
	}
	if o.InputDevice == "" {
		if o.InputFormat == "avfoundation" {
			// `none:0` opens audio only, never the camera.
			o.InputDevice = "none:0"
		} else {
			o.InputDevice = "default"
		}
	}
}

// Mic captures microphone audio by running ffmpeg with an s16le pipe and
// decoding its stdout into normalized sample frames.
type Mic struct {
	opts   MicOptions
	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
}

func NewMic(opts MicOptions, logger *zap.Logger) *Mic {
	opts.applyDefaults()
	return &Mic{opts: opts, logger: logger}
}

// Open spawns the capture process at the requested rate. A spawn failure is
// the closest thing a headless host has to a denied microphone.
func (m *Mic) Open(sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil {
		return nil
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", m.opts.InputFormat,
		"-i", m.opts.InputDevice,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"-",
	}
	cmd := exec.Command(m.opts.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mic stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mic process start: %w", err)
	}

	m.cmd = cmd
	m.stdout = stdout
	m.reader = bufio.NewReaderSize(stdout, 64*1024)
	if m.logger != nil {
		m.logger.Info("microphone opened",
			zap.String("format", m.opts.InputFormat),
			zap.String("device", m.opts.InputDevice),
			zap.Int("sample_rate", sampleRate))
	}
	return nil
}

// ReadFrame blocks until dst is full (or the stream ends) and returns the
// number of samples decoded.
func (m *Mic) ReadFrame(dst []float32) (int, error) {
	m.mu.Lock()
	reader := m.reader
	m.mu.Unlock()
	if reader == nil {
		return 0, io.EOF
	}

	buf := make([]byte, len(dst)*2)
	n, err := io.ReadFull(reader, buf)
	samples := n / 2
	for i := 0; i < samples; i++ {
		s := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		dst[i] = float32(s) / 32768.0
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return samples, err
}

// Close stops the capture process. Idempotent; errors from an already-dead
// process are swallowed.
func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil {
		return nil
	}
	_ = m.stdout.Close()
	_ = m.cmd.Process.Kill()
	_ = m.cmd.Wait()
	m.cmd = nil
	m.stdout = nil
	m.reader = nil
	return nil
}
