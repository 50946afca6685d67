package network

import (
	"context"
	"math/rand"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// LuckyBroadcaster derives the "lucky broadcast" capability (spec.md
// §4.2) from a Transport plus an owned PRNG. Randomization spreads
// retry load across the committee and avoids correlated failures from
// always asking the same quorum subset.
type LuckyBroadcaster struct {
	transport Transport
	rand      *rand.Rand
}

// NewLuckyBroadcaster wraps transport with a PRNG seeded with seed.
// The seed is a constructor argument, not read from the environment,
// so tests can pass a fixed value and get reproducible peer selection
// (spec.md §4.2, Design Notes §9's "PRNG ownership").
func NewLuckyBroadcaster(transport Transport, seed int64) *LuckyBroadcaster {
	return &LuckyBroadcaster{
		transport: transport,
		rand:      rand.New(rand.NewSource(seed)),
	}
}

// LuckyBroadcast selects up to k peers uniformly at random without
// replacement from peers (all of them if len(peers) <= k), and issues
// Transport.Send to each. Ordering of the returned channels is
// unspecified.
func (b *LuckyBroadcaster) LuckyBroadcast(ctx context.Context, peers []types.PeerAddress, req *types.WorkerBatchRequest, k int) []<-chan Result {
	if k > len(peers) {
		k = len(peers)
	}
	shuffled := make([]types.PeerAddress, len(peers))
	copy(shuffled, peers)
	b.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	chosen := shuffled[:k]
	results := make([]<-chan Result, 0, k)
	for _, peer := range chosen {
		results = append(results, b.transport.Send(ctx, peer, req))
	}
	return results
}
