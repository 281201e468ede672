package kpi

import "time"

// Recorder receives evaluation telemetry.
type Recorder interface {
	ObserveEvaluation(kind, status string, d time.Duration)
	ObserveError(kind, reason string)
	ObserveCacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvaluation(string, string, time.Duration) {}
func (nopRecorder) ObserveError(string, string)                     {}
func (nopRecorder) ObserveCacheLookup(bool)                         {}
