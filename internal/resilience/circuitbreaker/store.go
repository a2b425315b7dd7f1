package circuitbreaker

import "time"

// StoreConfig returns configuration for protecting document-store calls
// (the Store adapter's exists/bulk_insert operations) from cascading
// failures when the underlying database is unreachable or overloaded.
// Adapted from the teacher's database circuit breaker preset, renamed and
// retuned for a document store rather than a SQL connection pool. It trips
// once at least 5 requests in the current interval have all failed.
func StoreConfig() Config {
	return Config{
		Name:             "document-store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// Call runs fn through the circuit breaker and type-asserts the result to T.
// This is the generic-friendly replacement for the teacher's
// QueryContext/ExecContext wrappers, which were tied to *sql.DB's concrete
// return types; the Store adapter's MongoDB operations return varied result
// shapes (bool, inserted-id slices, bulk-write error details), so the
// wrapper here is parameterized instead of duplicated per operation.
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
