// Package tiercache implements a two-tier cache: an in-process memory layer in
// front of a persistent, versioned key-value store. Reads check memory first and
// fall back to the store, mirroring hits into memory. Writes go to the store
// first and are mirrored into memory only once the store accepted them, so the
// memory layer never holds a value the store does not.
//
// Components:
//   - Store: durable byte store holding one collection of one versioned
//     database (e.g. store/disk, store/redis, store/bigcache).
//   - memory.Layer: decoded values, with their write time and generation, for
//     zero-latency repeat reads.
//   - Codec[V]: (de)serializes V <-> []byte.
//   - GenStore: optional namespace epoch and per-key generations. Local links
//     caches in one process, Redis propagates invalidation across processes.
//
// Failures of Get and Set are logged and degrade to "absent" so a cache fault
// never blocks the feature it backs. ClearAll surfaces store failures because
// it runs on logout and must not silently leave data behind.
//
// Typical use:
//
//	v, ok, err := c.Get(ctx, id) // err only for programmer errors
//	if !ok {
//	    v, _ = fetch(ctx, id)
//	    _ = c.Set(ctx, id, v)
//	}
package tiercache
