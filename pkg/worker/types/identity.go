package types

// AuthorityId is the public identity key of a voting committee member.
// Represented as a fixed string rather than a raw key type since this
// module does not perform any cryptographic operations on it — it is
// only ever compared and used as a map key.
type AuthorityId string

// WorkerId is the small integer index of a worker within its
// authority. An authority may run several workers; each worker only
// ever synchronizes with its same-index siblings on other authorities.
type WorkerId uint32

// PeerAddress is the network name a worker is reachable at, resolved
// through the WorkerCache. Opaque to this module beyond what
// network.Transport needs to dial it.
type PeerAddress string

// Round is the consensus logical time used to bound retention of
// pending sync state. Monotonically non-decreasing except on an
// epoch reset, where it returns to zero.
type Round uint64

// Epoch identifies a committee generation. Strictly increases across
// NewEpoch reconfiguration events.
type Epoch uint64
