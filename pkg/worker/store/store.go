// Package store implements the persistent content-addressed batch
// store spec.md §2 leaves as an interface-only external collaborator.
// A concrete implementation still belongs in this module because the
// synchronizer's RequestBatch/DeleteBatches handlers and the network
// server's peer-fulfillment path both need something to read and write
// against.
package store

import (
	"context"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// BatchStore is a durable map from BatchDigest to Batch.
type BatchStore interface {
	// Read returns (nil, nil) on a clean miss, distinguishing "absent"
	// from "store error" per spec.md §3/§7.
	Read(ctx context.Context, digest types.BatchDigest) (*types.Batch, error)

	// Write persists a batch under its own digest.
	Write(ctx context.Context, batch *types.Batch) error

	// Remove deletes every batch named by digests. Missing digests are
	// not an error.
	Remove(ctx context.Context, digests []types.BatchDigest) error

	Close() error
}
