package capture

import (
	"os"
	"os/signal"
	"sync"
)

// SignalCounter counts received OS signals and dispatches them to handlers
// registered per signal. It is owned by the top-level control loop.
type SignalCounter struct {
	mutex    sync.Mutex
	counts   map[os.Signal]int
	handlers map[os.Signal]func(os.Signal)
}

// NewSignalCounter is constructor of SignalCounter.
func NewSignalCounter() *SignalCounter {
	return &SignalCounter{
		counts:   make(map[os.Signal]int),
		handlers: make(map[os.Signal]func(os.Signal)),
	}
}

// Handle registers fn for sig. fn can be nil to only count sig. Handle must
// be called before Listen.
func (x *SignalCounter) Handle(sig os.Signal, fn func(os.Signal)) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.handlers[sig] = fn
}

// Dispatch counts sig and invokes its handler. Unregistered signals are ignored.
func (x *SignalCounter) Dispatch(sig os.Signal) {
	x.mutex.Lock()
	fn, ok := x.handlers[sig]
	if ok {
		x.counts[sig]++
	}
	x.mutex.Unlock()

	if !ok {
		return
	}

	Logger.WithField("signal", sig.String()).Debug("Caught signal")
	if fn != nil {
		fn(sig)
	}
}

// Counts returns a copy of the counters.
func (x *SignalCounter) Counts() map[os.Signal]int {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	counts := make(map[os.Signal]int, len(x.counts))
	for sig, n := range x.counts {
		counts[sig] = n
	}
	return counts
}

// Listen subscribes to every registered signal and dispatches them until the
// returned stop function is called.
func (x *SignalCounter) Listen() (stop func()) {
	x.mutex.Lock()
	sigs := make([]os.Signal, 0, len(x.handlers))
	for sig := range x.handlers {
		sigs = append(sigs, sig)
	}
	x.mutex.Unlock()

	// signal.Notify without signals would subscribe to all of them.
	if len(sigs) == 0 {
		return func() {}
	}

	ch := make(chan os.Signal, 8)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				x.Dispatch(sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
