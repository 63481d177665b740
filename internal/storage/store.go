// Package storage persists the draw state as JSON documents under fixed keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys under which the durable state is kept.
const (
	KeyParticipants   = "lottery_participants"
	KeyWinners        = "lottery_winners"
	KeySettings       = "lottery_settings"
	KeyDesignatedList = "lottery_designated_list"
	KeyBlacklist      = "lottery_blacklist"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found in storage")

// Store is a key-value store of JSON documents.
type Store interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst any) error
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value any) error
	// AppendAtomic appends the elements of items (a slice) to the JSON array under key.
	// Either all elements are appended or none.
	AppendAtomic(ctx context.Context, key string, items any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// appendJSON merges the JSON array existing (may be nil) with the slice items.
func appendJSON(existing []byte, items any) ([]byte, error) {
	var current []json.RawMessage
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &current); err != nil {
			return nil, fmt.Errorf("existing value is not an array: %w", err)
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	var added []json.RawMessage
	if err := json.Unmarshal(data, &added); err != nil {
		return nil, fmt.Errorf("items must be a slice: %w", err)
	}
	return json.Marshal(append(current, added...))
}
