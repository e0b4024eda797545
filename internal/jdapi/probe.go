package jdapi

// firstHit runs probes in priority order and returns the result of the first
// one that reports a usable value. It is the shared fold behind the price
// chain, the stock chain, and the keyword classes: first success wins, a
// failing probe never fails the whole operation.
func firstHit[T any](probes []func() (T, bool)) (T, bool) {
	for _, probe := range probes {
		if v, ok := probe(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
