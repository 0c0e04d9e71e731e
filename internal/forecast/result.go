package forecast

// Result is the outcome of a soft-failing fetch. The zero value means the
// fetch was never attempted.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failed records a recoverable failure with a human-readable reason.
func Failed[T any](reason string) Result[T] {
	if reason == "" {
		reason = "unknown failure"
	}
	return Result[T]{reason: reason}
}

// IsOK reports whether the fetch succeeded.
func (r Result[T]) IsOK() bool {
	return r.ok
}

// Attempted reports whether the fetch ran at all.
func (r Result[T]) Attempted() bool {
	return r.ok || r.reason != ""
}

// Value returns the value and whether it is valid.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Reason returns the failure reason, or "" on success.
func (r Result[T]) Reason() string {
	return r.reason
}
