package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type fakeOutput struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
}

func (f *fakeOutput) Write(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, pcm)
	return nil
}

func (f *fakeOutput) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeOutput) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// pcmOfDuration builds a silent mono s16le buffer of the given play time.
func pcmOfDuration(d time.Duration, rate int) []byte {
	samples := int(d.Seconds() * float64(rate))
	return make([]byte, samples*BytesPerSample)
}

func TestSchedulerBackToBackStarts(t *testing.T) {
	mock := clock.NewMock()
	out := &fakeOutput{}
	s := NewScheduler(mock, out, PlaybackSampleRate, nil, nil)

	t0 := mock.Now()
	d1 := 20 * time.Millisecond
	d2 := 40 * time.Millisecond
	d3 := 10 * time.Millisecond

	seg1 := s.Enqueue(pcmOfDuration(d1, PlaybackSampleRate))
	seg2 := s.Enqueue(pcmOfDuration(d2, PlaybackSampleRate))
	seg3 := s.Enqueue(pcmOfDuration(d3, PlaybackSampleRate))

	if !seg1.Start.Equal(t0) {
		t.Errorf("seg1 start = %v, want %v", seg1.Start, t0)
	}
	if want := t0.Add(d1); !seg2.Start.Equal(want) {
		t.Errorf("seg2 start = %v, want %v", seg2.Start, want)
	}
	if want := t0.Add(d1 + d2); !seg3.Start.Equal(want) {
		t.Errorf("seg3 start = %v, want %v", seg3.Start, want)
	}
	if got := s.Active(); got != 3 {
		t.Fatalf("Active() = %d, want 3", got)
	}

	// No segment may overlap its predecessor.
	if seg2.Start.Before(seg1.Start.Add(seg1.Duration)) {
		t.Error("seg2 overlaps seg1")
	}
	if seg3.Start.Before(seg2.Start.Add(seg2.Duration)) {
		t.Error("seg3 overlaps seg2")
	}
}

func TestSchedulerDrainSignal(t *testing.T) {
	mock := clock.NewMock()
	out := &fakeOutput{}

	var mu sync.Mutex
	drains := 0
	s := NewScheduler(mock, out, PlaybackSampleRate, func() {
		mu.Lock()
		drains++
		mu.Unlock()
	}, nil)

	s.Enqueue(pcmOfDuration(20*time.Millisecond, PlaybackSampleRate))
	s.Enqueue(pcmOfDuration(20*time.Millisecond, PlaybackSampleRate))

	mock.Add(20 * time.Millisecond)
	mu.Lock()
	if drains != 0 {
		mu.Unlock()
		t.Fatal("drained before all segments completed")
	}
	mu.Unlock()

	mock.Add(20 * time.Millisecond)
	mu.Lock()
	if drains != 1 {
		mu.Unlock()
		t.Fatalf("drains = %d, want 1", drains)
	}
	mu.Unlock()

	if got := s.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0", got)
	}
	if got := out.writeCount(); got != 2 {
		t.Errorf("writes = %d, want 2", got)
	}
}

func TestSchedulerStopAllCancelsAndResets(t *testing.T) {
	mock := clock.NewMock()
	out := &fakeOutput{}

	drained := false
	s := NewScheduler(mock, out, PlaybackSampleRate, func() { drained = true }, nil)

	s.Enqueue(pcmOfDuration(50*time.Millisecond, PlaybackSampleRate))
	s.Enqueue(pcmOfDuration(50*time.Millisecond, PlaybackSampleRate))
	s.StopAll()

	if got := s.Active(); got != 0 {
		t.Fatalf("Active() after StopAll = %d, want 0", got)
	}
	if out.flushes != 1 {
		t.Errorf("flushes = %d, want 1", out.flushes)
	}

	// Cancelled segments must never fire.
	mock.Add(time.Second)
	if drained {
		t.Error("drained fired after StopAll")
	}
	if got := out.writeCount(); got != 0 {
		t.Errorf("writes after StopAll = %d, want 0", got)
	}

	// Second StopAll is a no-op beyond another flush.
	s.StopAll()
	if got := s.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0", got)
	}

	// Cursor was reset: the next segment starts at now, not after the
	// cancelled backlog.
	seg := s.Enqueue(pcmOfDuration(10*time.Millisecond, PlaybackSampleRate))
	if !seg.Start.Equal(mock.Now()) {
		t.Errorf("post-reset start = %v, want %v", seg.Start, mock.Now())
	}
}

func TestSchedulerIdleGapRestartsAtNow(t *testing.T) {
	mock := clock.NewMock()
	s := NewScheduler(mock, &fakeOutput{}, PlaybackSampleRate, nil, nil)

	s.Enqueue(pcmOfDuration(10*time.Millisecond, PlaybackSampleRate))
	mock.Add(500 * time.Millisecond)

	// Cursor lies in the past; the new segment starts immediately rather
	// than backdated.
	seg := s.Enqueue(pcmOfDuration(10*time.Millisecond, PlaybackSampleRate))
	if !seg.Start.Equal(mock.Now()) {
		t.Errorf("start = %v, want now %v", seg.Start, mock.Now())
	}
}

func TestSchedulerIgnoresEmptyBuffer(t *testing.T) {
	s := NewScheduler(clock.NewMock(), &fakeOutput{}, PlaybackSampleRate, nil, nil)
	if seg := s.Enqueue(nil); seg != nil {
		t.Fatal("Enqueue(nil) returned a segment")
	}
	if got := s.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0", got)
	}
}
