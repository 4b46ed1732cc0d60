// Package spec holds composable predicates over loaded domain entities.
// Specifications never fetch data; callers pass fully-loaded aggregates.
package spec

// Spec is a predicate over T.
type Spec[T any] func(T) bool

// IsSatisfiedBy evaluates the specification.
func (s Spec[T]) IsSatisfiedBy(v T) bool { return s(v) }

// And is satisfied when every spec is. It stops at the first failure.
// An empty And is always satisfied.
func And[T any](specs ...Spec[T]) Spec[T] {
	return func(v T) bool {
		for _, s := range specs {
			if !s(v) {
				return false
			}
		}
		return true
	}
}

// Or is satisfied when any spec is. It stops at the first success.
func Or[T any](specs ...Spec[T]) Spec[T] {
	return func(v T) bool {
		for _, s := range specs {
			if s(v) {
				return true
			}
		}
		return false
	}
}

func Not[T any](s Spec[T]) Spec[T] {
	return func(v T) bool { return !s(v) }
}

// And chains another spec onto s.
func (s Spec[T]) And(other Spec[T]) Spec[T] { return And(s, other) }
