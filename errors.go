package tiercache

import (
	"errors"
	"fmt"
)

// ErrDurableFull is returned by a DurableStore (or synthesized from the
// namespace durable budget) when a write does not fit.
var ErrDurableFull = errors.New("tiercache: durable tier full")

// SerializationError reports a value that could not be encoded for storage.
// Nothing is written to any tier when Set returns it.
type SerializationError struct {
	Namespace string
	Key       string
	Err       error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("tiercache: encode %s/%q: %v", e.Namespace, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// UnknownNamespaceError is the panic value of Registry.Namespace for a kind
// that was never registered.
type UnknownNamespaceError struct {
	Kind Kind
}

func (e *UnknownNamespaceError) Error() string {
	return fmt.Sprintf("tiercache: namespace %q is not registered", string(e.Kind))
}

// LoaderError wraps a failing preload/read-through loader.
type LoaderError struct {
	Key string
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("tiercache: load %q: %v", e.Key, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }
