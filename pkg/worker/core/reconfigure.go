package core

import (
	"context"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// handleReconfigure implements spec.md §4.4's Reconfigure command:
// NewEpoch, UpdateCommittee and Shutdown.
func (s *Synchronizer) handleReconfigure(cmd types.Reconfigure) {
	switch n := cmd.Notification.(type) {
	case types.NewEpoch:
		s.swapCommittee(n.Committee)
		s.pending = newPendingTable()
		s.round = 0
		// Cancel every in-flight peer response future, per spec.md
		// §4.4/§5: dropping them suffices because they are unowned by
		// peers.
		s.cancelInFlight()
		s.inFlightCtx, s.cancelInFlight = context.WithCancel(context.Background())
		s.publish(cmd.Notification)

	case types.UpdateCommittee:
		// Same swap/diff procedure as NewEpoch, but pending, round and
		// in-flight futures are left untouched.
		s.swapCommittee(n.Committee)
		s.log.Debugf("committee updated to epoch %d", n.Committee.Epoch)
		s.publish(cmd.Notification)

	case types.Shutdown:
		s.publish(cmd.Notification)
		s.state = ShuttingDown
		// Await confirmation that every watcher has dropped its
		// handle before terminating the loop (spec.md §4.4).
		_ = s.watcher.AwaitEmpty(context.Background())
		s.state = Stopped

	default:
		s.log.Errorf("unknown reconfigure notification: %#v", cmd.Notification)
	}
}

// swapCommittee performs the diff-then-swap procedure shared by
// NewEpoch and UpdateCommittee: ask the transport to drop connections
// for authorities leaving the committee, then atomically replace the
// Committee/WorkerCache snapshots, preserving known worker indices
// (types.WorkerCache.Rebuild — recovered from original_source, see
// SPEC_FULL.md §11).
func (s *Synchronizer) swapCommittee(next *types.Committee) {
	oldCache := s.currentWorkerCache()
	diff := oldCache.NetworkDiff(next)

	var stalePeers []types.PeerAddress
	for _, authority := range diff {
		if index, ok := oldCache.Workers[authority]; ok {
			for _, addr := range index {
				stalePeers = append(stalePeers, addr)
			}
		}
	}
	s.transport.Cleanup(stalePeers)

	s.committee.Store(next)
	s.workerCache.Store(oldCache.Rebuild(next, s.log))
}

// publish forwards a reconfiguration notification to the watcher. Per
// spec.md §5, the Committee/WorkerCache swap happens-before this call.
func (s *Synchronizer) publish(notification types.ReconfigureNotification) {
	s.watcher.Publish(notification)
}
