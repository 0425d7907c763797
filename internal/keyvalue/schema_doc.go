package keyvalue

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Schemas are persisted as plain JSON documents under the "_schema:"
// prefix so declared tables survive process restarts.

func encodeSchema(s *types.Schema) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return raw, nil
}

func decodeSchema(raw []byte) (*types.Schema, error) {
	var s types.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return &s, nil
}
