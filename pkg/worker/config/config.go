// Package config parses the synchronizer's process-level configuration
// from a TOML file, grounded in the same library dolthub-dolt and
// ethereum-go-ethereum use (github.com/BurntSushi/toml) rather than a
// hand-rolled flag/env parser.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jabolina/worker-sync/pkg/worker/core"
	"github.com/jabolina/worker-sync/pkg/worker/types"
	"github.com/pkg/errors"
)

// FileConfig is the on-disk shape of a worker's configuration file.
type FileConfig struct {
	Authority string `toml:"authority"`
	WorkerID  uint32 `toml:"worker_id"`
	ListenOn  string `toml:"listen_on"`

	StorePath string `toml:"store_path"`

	GCDepth        uint64 `toml:"gc_depth"`
	SyncRetryDelay string `toml:"sync_retry_delay"`
	SyncRetryNodes int    `toml:"sync_retry_nodes"`

	// Peers seeds the initial epoch-0 committee and worker cache. Later
	// epochs arrive over the Reconfigure command instead; this is only
	// enough to get the loop started.
	Peers []PeerConfig `toml:"peers"`
}

// PeerConfig names one sibling worker (same worker_id, different
// authority) to bootstrap the worker cache with.
type PeerConfig struct {
	Authority string `toml:"authority"`
	Address   string `toml:"address"`
}

// Load reads and parses a TOML config file at path.
func Load(path string) (*FileConfig, error) {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, errors.Wrapf(err, "decoding config at %s", path)
	}
	return &fc, nil
}

// SynchronizerConfig converts the file's sync_retry_delay string
// (a Go duration, e.g. "5s") into core.Config's time.Duration form.
func (fc *FileConfig) SynchronizerConfig() (core.Config, error) {
	delay, err := time.ParseDuration(fc.SyncRetryDelay)
	if err != nil {
		return core.Config{}, errors.Wrapf(err, "parsing sync_retry_delay %q", fc.SyncRetryDelay)
	}
	return core.Config{
		GCDepth:        types.Round(fc.GCDepth),
		SyncRetryDelay: delay,
		SyncRetryNodes: fc.SyncRetryNodes,
	}, nil
}

// Bootstrap builds the epoch-0 Committee and WorkerCache this worker
// starts with, from its own identity and the statically configured
// peer list. Later epochs supersede this entirely via Reconfigure.
func (fc *FileConfig) Bootstrap() (*types.Committee, *types.WorkerCache) {
	self := types.AuthorityId(fc.Authority)
	id := types.WorkerId(fc.WorkerID)

	authorities := map[types.AuthorityId]struct{}{self: {}}
	workers := map[types.AuthorityId]types.WorkerIndex{
		self: {id: types.PeerAddress(fc.ListenOn)},
	}

	for _, peer := range fc.Peers {
		authority := types.AuthorityId(peer.Authority)
		authorities[authority] = struct{}{}
		workers[authority] = types.WorkerIndex{id: types.PeerAddress(peer.Address)}
	}

	committee := &types.Committee{Epoch: 0, Authorities: authorities}
	workerCache := &types.WorkerCache{Epoch: 0, Workers: workers}
	return committee, workerCache
}
