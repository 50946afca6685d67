package core

import "github.com/jabolina/worker-sync/pkg/worker/types"

// pendingEntry tracks a single outstanding fetch: the round it
// originated in (for GC) and the millisecond timestamp it was last
// (re)issued at (for retry escalation). epoch is the committee epoch
// it was created under — see SPEC_FULL.md §11's decision on the
// cross-epoch response question spec.md §9 leaves open.
type pendingEntry struct {
	round      types.Round
	lastIssued int64
	epoch      types.Epoch
}

// pendingTable is the synchronizer's in-memory dedup index. It is
// owned exclusively by the event loop goroutine: no lock protects it,
// matching spec.md §5's single-threaded-cooperative model.
type pendingTable map[types.BatchDigest]pendingEntry

func newPendingTable() pendingTable {
	return make(pendingTable)
}

// gc drops every entry whose originating round is <= round-gcDepth,
// per spec.md §4.4's Cleanup handling. A no-op if round < gcDepth.
func (t pendingTable) gc(round types.Round, gcDepth types.Round) {
	if round < gcDepth {
		return
	}
	floor := round - gcDepth
	for digest, entry := range t {
		if entry.round <= floor {
			delete(t, digest)
		}
	}
}
