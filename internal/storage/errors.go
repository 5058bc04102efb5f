package storage

import "fmt"

// NotFoundError is returned by any lookup that misses; it carries the
// entity kind and key so callers and logs can name the missing identifier
// per spec.md §7 ("Database — unknown entity (typed with the missing
// identifier)").
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
