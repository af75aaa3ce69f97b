// Package remote defines the outcome type returned by backend reads.
package remote

// Kind classifies the outcome of a backend read.
type Kind uint8

const (
	// KindOK means the backend answered with data.
	KindOK Kind = iota
	// KindEmpty means the backend answered that there is nothing (404 or an
	// empty collection).
	KindEmpty
	// KindFailed means the backend could not be asked: transport error,
	// timeout, open breaker, unexpected status or undecodable body.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a read outcome. Value is the zero value unless Kind is KindOK.
type Result[T any] struct {
	Value T
	Kind  Kind
	Err   error
}

// OK wraps v as a successful result.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Kind: KindOK}
}

// Empty returns a "nothing found" result.
func Empty[T any]() Result[T] {
	return Result[T]{Kind: KindEmpty}
}

// Failed returns a result for a read that could not complete.
func Failed[T any](err error) Result[T] {
	return Result[T]{Kind: KindFailed, Err: err}
}

// Found reports whether the result carries data.
func (r Result[T]) Found() bool {
	return r.Kind == KindOK
}

// Failed reports whether the backend could not be asked.
func (r Result[T]) Failed() bool {
	return r.Kind == KindFailed
}

// Or returns Value when found and def otherwise.
func (r Result[T]) Or(def T) T {
	if r.Kind == KindOK {
		return r.Value
	}
	return def
}
