// Package selector maps a requested provider and a capability snapshot to
// a concrete backend identifier. Select is a pure function: same inputs,
// same backend, no side effects, no ambient lookups.
package selector

import "github.com/mesh-intelligence/strata/pkg/types"

// Select returns the backend to use for the requested provider given the
// observed capabilities. It is total: some backend is always returned,
// kv-memory being the unconditional last resort.
//
// Preference order:
//
//	relational: relational-file (engine + main context),
//	            relational-memory (engine), then the keyvalue order.
//	keyvalue:   kv-dir (extension store), kv-bolt (ordered store),
//	            kv-memory. kv-sync is never auto-selected; it is
//	            reachable only by pinning Config.Backend.
//	auto:       the relational order.
func Select(provider types.Provider, caps types.CapabilitySet) types.BackendID {
	switch provider {
	case types.ProviderRelational, types.ProviderAuto, "":
		if caps.HasRelationalEngine && caps.Context == types.ContextMain {
			return types.BackendRelationalFile
		}
		if caps.HasRelationalEngine {
			return types.BackendRelationalMemory
		}
		return selectKeyValue(caps)
	default:
		return selectKeyValue(caps)
	}
}

func selectKeyValue(caps types.CapabilitySet) types.BackendID {
	if caps.HasExtensionStore {
		return types.BackendDir
	}
	if caps.HasOrderedStore {
		return types.BackendBolt
	}
	return types.BackendMemory
}
