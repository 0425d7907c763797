// Package adapter implements the concrete storage adapters behind the
// key/value backend family: an in-process map, a file-per-key directory
// store, and a bbolt ordered store. All three satisfy types.Adapter.
package adapter
