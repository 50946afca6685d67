package types

// PrimaryCommand is the inbound primary→worker command union
// (spec.md §6). Each concrete command implements the unexported
// marker method so only this package's variants satisfy it — the
// idiomatic Go rendering of what the Rust source expresses as an enum.
type PrimaryCommand interface {
	isPrimaryCommand()
}

// Synchronize asks the worker to make sure it holds (or can fetch) the
// batches behind a set of digests, resolving Target's worker endpoint
// for the missing ones.
type Synchronize struct {
	Digests map[BatchDigest]struct{}
	Target  AuthorityId
}

func (Synchronize) isPrimaryCommand() {}

// Cleanup advances the primary's round and triggers pending-table GC.
type Cleanup struct {
	Round Round
}

func (Cleanup) isPrimaryCommand() {}

// Reconfigure carries a committee reconfiguration or shutdown
// notification.
type Reconfigure struct {
	Notification ReconfigureNotification
}

func (Reconfigure) isPrimaryCommand() {}

// RequestBatch asks the worker to return a single batch by digest.
type RequestBatch struct {
	Digest BatchDigest
}

func (RequestBatch) isPrimaryCommand() {}

// DeleteBatches asks the worker to remove a set of batches from the
// store.
type DeleteBatches struct {
	Digests []BatchDigest
}

func (DeleteBatches) isPrimaryCommand() {}

// ReconfigureNotification is the reconfiguration variant carried by
// Reconfigure and broadcast to the Watcher.
type ReconfigureNotification interface {
	isReconfigureNotification()
}

// NewEpoch signals a new committee epoch: pending state is cleared,
// the round resets, and in-flight requests are dropped.
type NewEpoch struct {
	Committee *Committee
}

func (NewEpoch) isReconfigureNotification() {}

// UpdateCommittee signals an in-epoch committee update: pending state,
// round and in-flight requests are left untouched.
type UpdateCommittee struct {
	Committee *Committee
}

func (UpdateCommittee) isReconfigureNotification() {}

// Shutdown signals the worker (and all its watchers) to terminate.
type Shutdown struct{}

func (Shutdown) isReconfigureNotification() {}

// WorkerPrimaryMessage is the outbound worker→primary reply union.
type WorkerPrimaryMessage interface {
	isWorkerPrimaryMessage()
}

// OthersBatch tells the primary a digest it asked about is already
// available locally, idempotently recovering from a missed delivery.
type OthersBatch struct {
	Digest BatchDigest
	Worker WorkerId
}

func (OthersBatch) isWorkerPrimaryMessage() {}

// RequestedBatch answers a RequestBatch command with its payload.
type RequestedBatch struct {
	Digest BatchDigest
	Batch  Batch
}

func (RequestedBatch) isWorkerPrimaryMessage() {}

// DeletedBatches confirms a DeleteBatches command succeeded.
type DeletedBatches struct {
	Digests []BatchDigest
}

func (DeletedBatches) isWorkerPrimaryMessage() {}

// ErrorMessage reports a failed RequestBatch/DeleteBatches command.
type ErrorMessage struct {
	Err WorkerPrimaryError
}

func (ErrorMessage) isWorkerPrimaryMessage() {}

// WorkerPrimaryError is the error enum carried by ErrorMessage.
type WorkerPrimaryError interface {
	error
	isWorkerPrimaryError()
}

// RequestedBatchNotFound reports a RequestBatch miss or store error.
type RequestedBatchNotFound struct {
	Digest BatchDigest
}

func (e *RequestedBatchNotFound) Error() string {
	return "requested batch not found: " + e.Digest.String()
}

func (*RequestedBatchNotFound) isWorkerPrimaryError() {}

// ErrorWhileDeletingBatches reports a store failure during
// DeleteBatches.
type ErrorWhileDeletingBatches struct {
	Digests []BatchDigest
	Cause   error
}

func (e *ErrorWhileDeletingBatches) Error() string {
	return "failed deleting batches: " + e.Cause.Error()
}

func (e *ErrorWhileDeletingBatches) Unwrap() error { return e.Cause }

func (*ErrorWhileDeletingBatches) isWorkerPrimaryError() {}

// WorkerBatchRequest is the peer→peer wire message requesting a set of
// missing batches by digest.
type WorkerBatchRequest struct {
	Digests []BatchDigest
}

// WorkerBatchResponse is the peer→peer wire response carrying whatever
// batches the responder could produce. The requester honors every
// batch whose digest is still in its pending table; extras are
// ignored (spec.md §6).
type WorkerBatchResponse struct {
	Batches []Batch
}
