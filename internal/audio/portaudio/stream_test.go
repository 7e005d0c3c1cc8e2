package portaudio

import (
	"errors"
	"testing"
	"time"

	"github.com/petems/micstream/internal/audio"
)

type fakePA struct {
	startErr error
	stopErr  error
	starts   int
	stops    int
	closes   int
}

func (f *fakePA) Start() error {
	f.starts++
	return f.startErr
}

func (f *fakePA) Stop() error {
	f.stops++
	return f.stopErr
}

func (f *fakePA) Close() error {
	f.closes++
	return nil
}

type recordingHandler struct {
	errs chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errs: make(chan error, 4)}
}

func (h *recordingHandler) HandleChunk(audio.Chunk) {}
func (h *recordingHandler) HandleError(err error)   { h.errs <- err }

func TestStreamStallReportsError(t *testing.T) {
	h := newRecordingHandler()
	s := &stream{pa: &fakePA{}, dog: newWatchdog(40*time.Millisecond, h.HandleError)}

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer s.Stop()

	select {
	case err := <-h.errs:
		if !errors.Is(err, ErrStalled) {
			t.Errorf("expected ErrStalled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stalled stream was never reported")
	}

	select {
	case err := <-h.errs:
		t.Errorf("expected a single report, got another: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchdogQuietWhileCallbacksArrive(t *testing.T) {
	h := newRecordingHandler()
	dog := newWatchdog(60*time.Millisecond, h.HandleError)
	dog.start()

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		dog.kick()
		time.Sleep(5 * time.Millisecond)
	}
	dog.halt()

	select {
	case err := <-h.errs:
		t.Errorf("unexpected stall report: %v", err)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStreamStopHaltsWatchdog(t *testing.T) {
	h := newRecordingHandler()
	s := &stream{pa: &fakePA{}, dog: newWatchdog(40*time.Millisecond, h.HandleError)}

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	select {
	case err := <-h.errs:
		t.Errorf("stopped stream reported a stall: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStreamStopBeforeStartOnlyCloses(t *testing.T) {
	pa := &fakePA{stopErr: errors.New("stream not started")}
	s := &stream{pa: pa, dog: newWatchdog(time.Second, func(error) {})}

	if err := s.Stop(); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if pa.stops != 0 {
		t.Errorf("expected no Pa stop on an unstarted stream, got %d", pa.stops)
	}
	if pa.closes != 1 {
		t.Errorf("expected one close, got %d", pa.closes)
	}

	// A second stop is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("unexpected error on second stop: %v", err)
	}
	if pa.closes != 1 {
		t.Errorf("expected close to run once, got %d", pa.closes)
	}
}

func TestStreamStopAfterStart(t *testing.T) {
	pa := &fakePA{}
	s := &stream{pa: pa, dog: newWatchdog(time.Second, func(error) {})}

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if pa.stops != 1 || pa.closes != 1 {
		t.Errorf("expected one stop and one close, got %d and %d", pa.stops, pa.closes)
	}
}

func TestStreamStartFailureLeavesUnstarted(t *testing.T) {
	pa := &fakePA{startErr: errors.New("device busy")}
	s := &stream{pa: pa, dog: newWatchdog(20*time.Millisecond, func(err error) {
		t.Errorf("unexpected stall report: %v", err)
	})}

	if err := s.Start(); err == nil {
		t.Fatal("expected start error")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if pa.stops != 0 {
		t.Errorf("expected no Pa stop after failed start, got %d", pa.stops)
	}
	time.Sleep(60 * time.Millisecond)
}
