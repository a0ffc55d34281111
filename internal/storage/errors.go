package storage

import "fmt"

// PersistenceError wraps a failure to read or write a backing store. It is
// distinct from business-logic failures so callers can tell "your task was
// misclassified" apart from "we couldn't save it".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
