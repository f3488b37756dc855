package bag

import "log/slog"

// ProgressSink receives completion updates for a named stage. Sinks must
// tolerate concurrent calls and must not influence results.
type ProgressSink interface {
	Progress(stage string, completed, total int)
}

// NopProgress discards all updates.
type NopProgress struct{}

func (NopProgress) Progress(string, int, int) {}

// LogProgress forwards updates to slog at debug level, with an info line at
// completion. Every controls sampling; zero logs each tenth of the total.
type LogProgress struct {
	Logger *slog.Logger
	Every  int
}

func (p LogProgress) Progress(stage string, completed, total int) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default().With("component", "progress")
	}
	if completed == total {
		logger.Info("stage complete", "stage", stage, "total", total)
		return
	}
	every := p.Every
	if every <= 0 {
		every = total / 10
		if every == 0 {
			every = 1
		}
	}
	if completed%every == 0 {
		logger.Debug("stage progress", "stage", stage, "completed", completed, "total", total)
	}
}
