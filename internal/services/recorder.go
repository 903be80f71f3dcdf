package services

// Recorder receives business counters; *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCheckout(strategy, outcome string)
	ObserveTransition(source, to string)
	ObserveCallback(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheckout(string, string)   {}
func (nopRecorder) ObserveTransition(string, string) {}
func (nopRecorder) ObserveCallback(string)           {}
