package core

// Invoker spawns a function on its own goroutine. Mirrors the
// teacher's core.Invoker abstraction (pkg/mcast/core/peer.go), which
// exists so tests can swap in a WaitGroup-backed invoker and wait for
// every spawned goroutine to finish before asserting — see
// coretest.WaitGroupInvoker.
type Invoker interface {
	Spawn(f func())
}

// GoInvoker is the production Invoker: every Spawn is a plain `go f()`.
type GoInvoker struct{}

// Spawn implements Invoker.
func (GoInvoker) Spawn(f func()) {
	go f()
}
