// Package strata is the public façade over the storage engines. A DB is
// opened from a Config, binds exactly one backend (with at most one
// fallback swap during initialization), and exposes the uniform record,
// table, query, and transaction surface regardless of which backend ended
// up serving it.
package strata
