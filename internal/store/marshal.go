package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/gelsim/internal/canon"
)

// marshalConditions converts Conditions to canonical JSON TEXT for storage.
func marshalConditions(c Conditions) (string, error) {
	data, err := canon.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal conditions: %w", err)
	}
	return string(data), nil
}

// unmarshalConditions parses the conditions column.
func unmarshalConditions(data string) (Conditions, error) {
	var c Conditions
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Conditions{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if c.Lanes == nil {
		c.Lanes = []string{}
	}
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
