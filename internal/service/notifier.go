package service

import "log/slog"

// Notifier receives the human-readable status events of a sync pass. The
// desktop shell subscribes to surface them in its status bar; everything
// finer-grained stays in the logs.
type Notifier interface {
	Progress(message string)
	Finished(success bool, message string)
}

// LogNotifier is the default sink when no UI is attached
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Progress(message string) {
	n.Logger.Info("Sync progress", "message", message)
}

func (n LogNotifier) Finished(success bool, message string) {
	if success {
		n.Logger.Info("Sync finished", "message", message)
		return
	}
	n.Logger.Warn("Sync failed", "message", message)
}

// NotifierFuncs adapts plain callbacks to the Notifier interface; nil
// callbacks are simply skipped
type NotifierFuncs struct {
	OnProgress func(message string)
	OnFinished func(success bool, message string)
}

func (n NotifierFuncs) Progress(message string) {
	if n.OnProgress != nil {
		n.OnProgress(message)
	}
}

func (n NotifierFuncs) Finished(success bool, message string) {
	if n.OnFinished != nil {
		n.OnFinished(success, message)
	}
}
