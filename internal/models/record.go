package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// RecordActivityKey is the key holding the activity inside a record
const RecordActivityKey = "activity"

// ParseRecord extracts the activity from a {"activity": {...}} record.
// Some exports nest it one level deeper as {"activity": {"activity": {...}}}.
func ParseRecord(data []byte) (*Activity, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	raw, ok := record[RecordActivityKey]
	if !ok || isNullJSON(raw) {
		return nil, fmt.Errorf("record has no %q object", RecordActivityKey)
	}

	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, fmt.Errorf("invalid %q object: %w", RecordActivityKey, err)
	}
	if nested, ok := inner[RecordActivityKey]; ok && !isNullJSON(nested) {
		raw = nested
	}

	var activity Activity
	if err := json.Unmarshal(raw, &activity); err != nil {
		return nil, fmt.Errorf("invalid activity: %w", err)
	}
	return &activity, nil
}

func isNullJSON(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}
