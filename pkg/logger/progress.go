package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter logs batch progress at most once per interval and always
// on completion.
type ProgressReporter struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	interval    time.Duration
	startTime   time.Time
	lastUpdate  time.Time
	logger      *Logger
}

func NewProgressReporter(log *Logger, total int, description string) *ProgressReporter {
	now := time.Now()
	return &ProgressReporter{
		total:       total,
		description: description,
		interval:    5 * time.Second,
		startTime:   now,
		lastUpdate:  now,
		logger:      log.WithField("component", "progress"),
	}
}

// Update increments the counter by one item.
func (pr *ProgressReporter) Update() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current++
	now := time.Now()
	if now.Sub(pr.lastUpdate) >= pr.interval || pr.current >= pr.total {
		pr.reportProgress()
		pr.lastUpdate = now
	}
}

// Progress returns the processed and total item counts.
func (pr *ProgressReporter) Progress() (current, total int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.current, pr.total
}

func (pr *ProgressReporter) reportProgress() {
	percentage := 100.0
	if pr.total > 0 {
		percentage = float64(pr.current) / float64(pr.total) * 100
	}
	elapsed := time.Since(pr.startTime)

	var eta string
	if pr.current > 0 && pr.current < pr.total {
		avg := elapsed / time.Duration(pr.current)
		eta = fmt.Sprintf(" (ETA: %s)", (time.Duration(pr.total-pr.current) * avg).Round(time.Second))
	}

	pr.logger.WithFields(map[string]interface{}{
		"current": pr.current,
		"total":   pr.total,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)%s", pr.description, pr.current, pr.total, percentage, eta))
}
