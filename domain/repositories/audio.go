package repositories

// CaptureDevice is a platform microphone yielding normalized mono sample
// frames at the requested rate. Open may fail with a permission-denied
// condition; ReadFrame blocks until a full frame is available.
type CaptureDevice interface {
	// Open acquires the device at the given sample rate.
	Open(sampleRate int) error
	// ReadFrame fills dst with normalized samples in [-1, 1] and returns the
	// number of samples written.
	ReadFrame(dst []float32) (int, error)
	// Close releases the device. Idempotent.
	Close() error
}

// PlaybackDevice is a platform audio output sink accepting s16le PCM at the
// rate it was opened with.
type PlaybackDevice interface {
	Open(sampleRate int) error
	// Write queues raw PCM bytes for output.
	Write(pcm []byte) error
	// Flush discards any device-side buffered audio.
	Flush() error
	Close() error
}
