// Package types defines the public contracts for the strata storage system:
// configuration, capability sets, backend identifiers, the storage adapter
// contract, column schemas, query descriptors, and the error taxonomy.
package types
