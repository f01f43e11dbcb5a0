package driven

import "time"

// Metrics records operational counters for release checks and downloads.
type Metrics interface {
	ObserveCheck(outcome string, duration time.Duration)
	ObserveDownload(outcome string, bytes int64)
}
