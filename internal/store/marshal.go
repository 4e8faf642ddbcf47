package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rift/internal/ir"
)

// marshalTargets converts a target list to canonical JSON TEXT for storage.
func marshalTargets(targets []string) (string, error) {
	arr := make(ir.IRArray, len(targets))
	for i, t := range targets {
		arr[i] = ir.IRString(t)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal targets: %w", err)
	}
	return string(data), nil
}

// unmarshalTargets parses the JSON TEXT written by marshalTargets.
func unmarshalTargets(data string) ([]string, error) {
	targets := []string{}
	if data == "" || data == "[]" {
		return targets, nil
	}
	if err := json.Unmarshal([]byte(data), &targets); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	return targets, nil
}
