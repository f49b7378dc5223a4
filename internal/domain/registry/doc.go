// Package registry owns the loaded selector configurations and everything
// derived from them.
//
// The registry is constructed explicitly and passed by reference; there is
// no process-wide instance. It wires the loader, the inheritance resolver,
// the semantic index, the rollback store and the watcher together.
//
// Components:
//   - Registry: load, hot reload, lookup, stats and health
//   - RollbackStore: last known-good version per path
//   - Notifier: change subscriptions for downstream caches
//
// Features:
//   - Parallel initial load with per-file failure isolation
//   - Per-path serialized reloads; different paths reload concurrently
//   - Atomic swap of configuration, index and chain cache under one lock
//   - ULID version stamps on every accepted version
//   - Dependency check for template references after inheritance
//
// Example Usage:
//
//	reg, err := registry.New(registry.Options{Roots: roots, HotReload: true})
//	err = reg.Load(ctx)
//	err = reg.Start(ctx)
//	defer reg.Stop()
//	entry, err := reg.Lookup("price", "product.details")
package registry
