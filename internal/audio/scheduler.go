package audio

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Output is the sink side of the playback device as the scheduler sees it.
type Output interface {
	Write(pcm []byte) error
	Flush() error
}

// Segment is one scheduled block of model speech. It is owned by the
// scheduler from Enqueue until it finishes or StopAll cancels it.
type Segment struct {
	Start    time.Time
	Duration time.Duration

	startTimer *clock.Timer
	doneTimer  *clock.Timer
}

// Scheduler owns the output audio clock. Segments are scheduled strictly
// back to back: each starts at max(cursor, now) and advances the cursor by
// its own duration, so playback is gapless and never overlaps.
type Scheduler struct {
	mu sync.Mutex

	clk        clock.Clock
	out        Output
	sampleRate int
	logger     *zap.Logger

	// cursor is the absolute time the next segment may start. The zero
	// value means "start immediately"; StopAll resets to it.
	cursor time.Time
	active map[*Segment]struct{}

	// onDrained fires once each time the active set empties through natural
	// completion (not through StopAll).
	onDrained func()
}

// NewScheduler creates a playback scheduler over the given output device.
func NewScheduler(clk clock.Clock, out Output, sampleRate int, onDrained func(), logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clk:        clk,
		out:        out,
		sampleRate: sampleRate,
		logger:     logger,
		active:     make(map[*Segment]struct{}),
		onDrained:  onDrained,
	}
}

// Enqueue schedules one decoded PCM buffer for gapless playback and returns
// its segment handle. Empty buffers are ignored.
func (s *Scheduler) Enqueue(pcm []byte) *Segment {
	if len(pcm) == 0 {
		return nil
	}
	dur := time.Duration(DurationOf(len(pcm), s.sampleRate))

	s.mu.Lock()
	now := s.clk.Now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	seg := &Segment{Start: start, Duration: dur}
	s.cursor = start.Add(dur)
	s.active[seg] = struct{}{}

	buf := pcm
	seg.startTimer = s.clk.AfterFunc(start.Sub(now), func() {
		s.deliver(seg, buf)
	})
	seg.doneTimer = s.clk.AfterFunc(start.Add(dur).Sub(now), func() {
		s.complete(seg)
	})
	s.mu.Unlock()

	return seg
}

func (s *Scheduler) deliver(seg *Segment, pcm []byte) {
	s.mu.Lock()
	_, live := s.active[seg]
	s.mu.Unlock()
	if !live {
		// Cancelled between timer fire and delivery.
		return
	}
	if s.out == nil {
		return
	}
	if err := s.out.Write(pcm); err != nil && s.logger != nil {
		s.logger.Warn("playback write failed", zap.Error(err))
	}
}

func (s *Scheduler) complete(seg *Segment) {
	s.mu.Lock()
	if _, live := s.active[seg]; !live {
		s.mu.Unlock()
		return
	}
	delete(s.active, seg)
	drained := len(s.active) == 0
	cb := s.onDrained
	s.mu.Unlock()

	if drained && cb != nil {
		cb()
	}
}

// Active returns the number of scheduled segments.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// StopAll cancels every scheduled segment, flushes the device, and resets
// the cursor. Idempotent; no drained signal is emitted.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for seg := range s.active {
		if seg.startTimer != nil {
			seg.startTimer.Stop()
		}
		if seg.doneTimer != nil {
			seg.doneTimer.Stop()
		}
		delete(s.active, seg)
	}
	s.cursor = time.Time{}
	out := s.out
	s.mu.Unlock()

	if out != nil {
		if err := out.Flush(); err != nil && s.logger != nil {
			s.logger.Warn("playback flush failed", zap.Error(err))
		}
	}
}
