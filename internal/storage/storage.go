// Package storage defines the raw key/value durability the board persists into.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by a Prefs implementation used after Close.
var ErrClosed = errors.New("prefs store closed")

// Prefs is a flat string key/value store. Apply commits every pair of the batch
// together; readers never observe a half-written batch.
type Prefs interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Apply(ctx context.Context, values map[string]string) error
	Close() error
}
