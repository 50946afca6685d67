package core

import (
	"context"
	"time"

	"github.com/jabolina/worker-sync/pkg/worker/network"
)

// Run is the synchronizer's main loop: it multiplexes the primary
// command channel, the fan-in channel of completed peer responses, and
// the retry timer, processing exactly one ready event per iteration
// (spec.md §4.4). It returns once Reconfigure(Shutdown) has been
// forwarded and every watcher has dropped its handle.
func (s *Synchronizer) Run() {
	timer := time.NewTimer(TimerResolution)
	defer timer.Stop()

	for s.state != Stopped {
		select {
		case cmd, ok := <-s.rxPrimary:
			if !ok {
				// The primary hung up without an explicit Shutdown
				// notification. Treated the same as spec.md §7 row 5:
				// abandon and keep looping (a real shutdown will still
				// arrive through Reconfigure in practice).
				continue
			}
			s.handlePrimaryCommand(cmd)

		case result := <-s.completions:
			s.handlePeerResponse(result)

		case <-timer.C:
			s.handleRetryTick()
			timer.Reset(TimerResolution)
		}
	}
}

// track adopts a single-value Result channel into the synchronizer's
// fan-in completion channel — the Go rendering of pushing a future
// into the Rust source's FuturesUnordered (Design Notes §9). The
// goroutine exits without ever touching shared state if the current
// epoch's in-flight context is cancelled first (NewEpoch reconfiguration
// drops in-flight futures by cancelling it).
func (s *Synchronizer) track(ctx context.Context, ch <-chan network.Result) {
	s.invoker.Spawn(func() {
		select {
		case result, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.completions <- result:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	})
}
