package metrics

import "time"

// Global functions for dot-import usage

// MetricDuration records a duration directly
func MetricDuration(topic, function string, d time.Duration) {
	GetInstance().RecordDuration(topic, function, d)
}

// MetricSince records the time elapsed since start
func MetricSince(topic, function string, start time.Time) {
	GetInstance().RecordDuration(topic, function, time.Since(start))
}

// MetricSuccess records a successful operation
func MetricSuccess(topic, operation string) {
	GetInstance().RecordSuccess(topic, operation)
}

// MetricFailWithReason records a failed operation with a reason
func MetricFailWithReason(topic, operation, reason string) {
	GetInstance().RecordFailure(topic, operation, reason)
}

// MetricInc increments a counter
func MetricInc(topic, function string) {
	GetInstance().AddCounter(topic, function, 1)
}
