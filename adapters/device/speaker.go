package device

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// SpeakerOptions configures the ffplay output process.
type SpeakerOptions struct {
	// FFplayPath defaults to "ffplay" on PATH.
	FFplayPath string
	// Volume is the ffplay startup volume, 0 to 100.
	Volume int
}

func (o *SpeakerOptions) applyDefaults() {
	if o.FFplayPath == "" {
		o.FFplayPath = "ffplay"
	}
	if o.Volume <= 0 {
		o.Volume = 80
	}
}

// Speaker plays s16le PCM by piping it into an ffplay process. Flush
// restarts the process, which is the only way to drop audio ffplay has
// already buffered.
type Speaker struct {
	opts   SpeakerOptions
	logger *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	sampleRate int
}

func NewSpeaker(opts SpeakerOptions, logger *zap.Logger) *Speaker {
	opts.applyDefaults()
	return &Speaker{opts: opts, logger: logger}
}

func (s *Speaker) Open(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	return s.startLocked()
}

func (s *Speaker) startLocked() error {
	if s.cmd != nil {
		return nil
	}
	// ffplay does not accept ffmpeg-style -ac; mono comes via -ch_layout.
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-volume", fmt.Sprintf("%d", s.opts.Volume),
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", s.sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.opts.FFplayPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("speaker stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("speaker process start: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	if s.logger != nil {
		s.logger.Info("speaker opened", zap.Int("sample_rate", s.sampleRate))
	}
	return nil
}

func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("speaker not open")
	}
	_, err := stdin.Write(pcm)
	return err
}

// Flush discards buffered audio by recycling the process; the next Write
// streams into a fresh player.
func (s *Speaker) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	s.stopLocked()
	return s.startLocked()
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Speaker) stopLocked() {
	if s.cmd == nil {
		return
	}
	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdin = nil
}
