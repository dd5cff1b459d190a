package zbridge

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// ProgressReporter receives coarse byte progress of one operation.
//
// Reporters are advisory: they are called from the operation's goroutine and must return quickly.
type ProgressReporter func(completed, total uint64)

// NewLogReporter reports progress through the given logger at most once per interval.
//
// For example, with a 5s interval the logger prints `processed 5 MiB / 120 MiB so far` every 5 seconds.
func NewLogReporter(logger *log.Logger, interval time.Duration) ProgressReporter {
	sometimes := &rate.Sometimes{Interval: interval}
	return func(completed, total uint64) {
		sometimes.Do(func() {
			logger.Printf("processed %s / %s so far", humanize.IBytes(completed), humanize.IBytes(total))
		})
	}
}

// NewProgressBarReporter reports progress through the given progress bar.
//
// If bar is nil one is created on the first report with progressbar.DefaultBytes.
func NewProgressBarReporter(bar *progressbar.ProgressBar, description string) ProgressReporter {
	return func(completed, total uint64) {
		if bar == nil {
			bar = progressbar.DefaultBytes(int64(total), description)
		} else {
			bar.ChangeMax64(int64(total))
		}
		_ = bar.Set64(int64(completed))
	}
}

// Bind attaches a reporter to the hooks' OnTotal/OnCompleted slots, preserving any hooks already installed.
func (h *ExtractHooks) Bind(reporter ProgressReporter) {
	var total uint64
	prevTotal, prevCompleted := h.OnTotal, h.OnCompleted

	h.OnTotal = func(t uint64) {
		total = t
		if prevTotal != nil {
			prevTotal(t)
		}
	}
	h.OnCompleted = func(completed uint64) {
		reporter(completed, total)
		if prevCompleted != nil {
			prevCompleted(completed)
		}
	}
}

// Bind attaches a reporter to the hooks' OnTotal/OnCompleted slots, preserving any hooks already installed.
func (h *UpdateHooks) Bind(reporter ProgressReporter) {
	var total uint64
	prevTotal, prevCompleted := h.OnTotal, h.OnCompleted

	h.OnTotal = func(t uint64) {
		total = t
		if prevTotal != nil {
			prevTotal(t)
		}
	}
	h.OnCompleted = func(completed uint64) {
		reporter(completed, total)
		if prevCompleted != nil {
			prevCompleted(completed)
		}
	}
}
