package types

import "fmt"

// ErrUnknownWorker is returned by WorkerCache.Worker when the primary
// asks the synchronizer to sync with an authority/worker pair the
// cache has no endpoint for.
type ErrUnknownWorker struct {
	Authority AuthorityId
	Worker    WorkerId
}

func (e *ErrUnknownWorker) Error() string {
	return fmt.Sprintf("no known worker %d for authority %s", e.Worker, e.Authority)
}

// Committee is the set of authorities participating in a given epoch.
// Epoch strictly increases across NewEpoch reconfiguration events.
type Committee struct {
	Epoch       Epoch
	Authorities map[AuthorityId]struct{}
}

// Keys returns the authority identities of this committee. Order is
// unspecified.
func (c *Committee) Keys() []AuthorityId {
	keys := make([]AuthorityId, 0, len(c.Authorities))
	for id := range c.Authorities {
		keys = append(keys, id)
	}
	return keys
}

// WorkerIndex maps a worker id to its resolved network name, for a
// single authority.
type WorkerIndex map[WorkerId]PeerAddress

// WorkerCache is the mapping from authority to its worker endpoints,
// keyed by worker id. Its epoch tracks Committee.Epoch after a
// reconfiguration.
type WorkerCache struct {
	Epoch   Epoch
	Workers map[AuthorityId]WorkerIndex
}

// Worker resolves the network name of a single worker belonging to
// the given authority.
func (wc *WorkerCache) Worker(authority AuthorityId, id WorkerId) (PeerAddress, error) {
	index, ok := wc.Workers[authority]
	if !ok {
		return "", &ErrUnknownWorker{Authority: authority, Worker: id}
	}
	name, ok := index[id]
	if !ok {
		return "", &ErrUnknownWorker{Authority: authority, Worker: id}
	}
	return name, nil
}

// NetworkDiff returns the authorities present in this cache but absent
// from next — the set whose connections the transport should drop on
// reconfiguration. Recovered from original_source/worker/src/synchronizer.rs's
// `worker_cache.network_diff(new_committee.keys())` call, which spec.md
// §4.4 references without naming.
func (wc *WorkerCache) NetworkDiff(next *Committee) []AuthorityId {
	var diff []AuthorityId
	for id := range wc.Workers {
		if _, stillPresent := next.Authorities[id]; !stillPresent {
			diff = append(diff, id)
		}
	}
	return diff
}

// Rebuild produces the WorkerCache for a new committee, preserving any
// worker index this cache already knows for a surviving authority and
// defaulting to an empty index (with a warning) for a newly admitted
// one. Mirrors the Rust source's per-key rebuild in
// ReconfigureNotification::NewEpoch/UpdateCommittee handling.
func (wc *WorkerCache) Rebuild(next *Committee, log Logger) *WorkerCache {
	workers := make(map[AuthorityId]WorkerIndex, len(next.Authorities))
	for _, id := range next.Keys() {
		if index, ok := wc.Workers[id]; ok {
			workers[id] = index
			continue
		}
		log.Warnf("worker cache does not have a key for new committee member %s", id)
		workers[id] = WorkerIndex{}
	}
	return &WorkerCache{Epoch: next.Epoch, Workers: workers}
}

// PeersForWorker enumerates the network names of every other worker
// sharing the given worker id across the committee, excluding self.
// This is "my peer workers" — the set the retry timer's lucky
// broadcast draws from (original_source's `others_workers`).
func (wc *WorkerCache) PeersForWorker(self AuthorityId, id WorkerId) []PeerAddress {
	var peers []PeerAddress
	for authority, index := range wc.Workers {
		if authority == self {
			continue
		}
		if name, ok := index[id]; ok {
			peers = append(peers, name)
		}
	}
	return peers
}
