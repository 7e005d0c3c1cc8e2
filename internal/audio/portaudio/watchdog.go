package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStalled is reported when a started stream stops delivering callbacks,
// which is how PortAudio surfaces a removed device.
var ErrStalled = errors.New("audio stream stalled")

// stallTimeout is far above any callback period PortAudio picks.
const stallTimeout = 2 * time.Second

// watchdog calls onStall once if kick is not called for timeout after
// start.
type watchdog struct {
	timeout time.Duration
	onStall func(error)

	last atomic.Int64
	done chan struct{}
	once sync.Once
}

func newWatchdog(timeout time.Duration, onStall func(error)) *watchdog {
	return &watchdog{
		timeout: timeout,
		onStall: onStall,
		done:    make(chan struct{}),
	}
}

func (w *watchdog) kick() {
	w.last.Store(time.Now().UnixNano())
}

func (w *watchdog) start() {
	w.kick()
	go w.run()
}

func (w *watchdog) halt() {
	w.once.Do(func() { close(w.done) })
}

func (w *watchdog) run() {
	ticker := time.NewTicker(w.timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, w.last.Load()))
			if idle < w.timeout {
				continue
			}
			select {
			case <-w.done:
				return
			default:
			}
			w.onStall(fmt.Errorf("%w: no audio callback for %s", ErrStalled, idle.Round(time.Millisecond)))
			return
		}
	}
}
