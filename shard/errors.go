package shard

import "fmt"

// ConfigurationError covers spec §7.1: ndim mismatch, non-regular chunk
// grid, non-divisible chunk shapes, or a non-fixed-size index codec
// pipeline. It is raised at validation time and is always fatal.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "shard: configuration error: " + e.Msg
}

func newConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// CorruptShardError covers spec §7.2: a decoded index with duplicate
// offsets, entries extending past the payload, or a dimension mismatch.
// It is fatal for the shard operation that encountered it.
type CorruptShardError struct {
	Msg string
}

func (e *CorruptShardError) Error() string {
	return "shard: corrupt shard: " + e.Msg
}

func newCorruptShardError(format string, args ...any) error {
	return &CorruptShardError{Msg: fmt.Sprintf(format, args...)}
}

// InnerCodecError wraps an error returned by the inner or index codec
// pipeline (spec §7.3).
type InnerCodecError struct {
	Err error
}

func (e *InnerCodecError) Error() string {
	return fmt.Sprintf("shard: inner codec error: %v", e.Err)
}

func (e *InnerCodecError) Unwrap() error { return e.Err }

func wrapInnerCodecError(err error) error {
	if err == nil {
		return nil
	}
	return &InnerCodecError{Err: err}
}

// StoreError wraps an error returned by the underlying key-value store
// (spec §7.4). A missing key is not a StoreError: that case is surfaced as
// store.ErrNotFound and handled internally (spec §7.5).
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("shard: store error: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Err: err}
}
