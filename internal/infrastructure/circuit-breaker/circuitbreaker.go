package circuitbreaker

import "github.com/sony/gobreaker/v2"

// CreateCircuitBreaker builds the breaker wrapped around provider API calls.
// It fails fast while the provider is unreachable; it never retries.
func CreateCircuitBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	var st gobreaker.Settings
	st.Name = name
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 5 && failureRatio >= 0.5
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](st)

	return cb
}
