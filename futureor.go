package statetree

// FutureOr represents a value that is either already resolved or will be
// resolved later. Descriptor factories and handlers may return a FutureOr
// so that synchronous handlers never pay for allocation or scheduling, while
// asynchronous ones compose uniformly. Materialize never observes a pending
// FutureOr - construction is fully synchronous (spec: "Materialization
// itself never suspends").
type FutureOr[T any] struct {
	resolved bool
	value    T
	err      error
	subscribe func(func(T, error))
}

// Resolved wraps an already-available value.
func Resolved[T any](value T) FutureOr[T] {
	return FutureOr[T]{resolved: true, value: value}
}

// Failed wraps an already-available error.
func Failed[T any](err error) FutureOr[T] {
	return FutureOr[T]{resolved: true, err: err}
}

// Deferred wraps a computation that completes later. subscribe must invoke
// its callback exactly once, synchronously or asynchronously, with either a
// value or an error.
func Deferred[T any](subscribe func(complete func(T, error))) FutureOr[T] {
	return FutureOr[T]{subscribe: subscribe}
}

// IsResolved reports whether the value is already available without
// requiring a subscription.
func (f FutureOr[T]) IsResolved() bool {
	return f.resolved
}

// Listen registers complete to run once the value is available. If the
// FutureOr is already resolved, complete runs synchronously and
// immediately.
func (f FutureOr[T]) Listen(complete func(T, error)) {
	if f.resolved {
		complete(f.value, f.err)
		return
	}
	f.subscribe(complete)
}

// BindFutureOr chains a continuation onto a FutureOr[T], producing a
// FutureOr[U]. If f is already resolved, next runs synchronously; otherwise
// the continuation is chained to run once f resolves. Mirrors spec.md's
// "monadic-bind helper that is transparent to callers".
func BindFutureOr[T, U any](f FutureOr[T], next func(T, error) FutureOr[U]) FutureOr[U] {
	if f.resolved {
		return next(f.value, f.err)
	}
	return Deferred(func(complete func(U, error)) {
		f.subscribe(func(v T, err error) {
			next(v, err).Listen(complete)
		})
	})
}

// MapFutureOr transforms a resolved value without introducing an error path.
func MapFutureOr[T, U any](f FutureOr[T], fn func(T) U) FutureOr[U] {
	return BindFutureOr(f, func(v T, err error) FutureOr[U] {
		if err != nil {
			return Failed[U](err)
		}
		return Resolved(fn(v))
	})
}
