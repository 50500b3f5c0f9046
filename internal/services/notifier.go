package services

import "go.uber.org/zap"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message emitted by sessions and the apply
// pipeline: recovered drafts, parse and apply failures, apply summaries.
type Notification struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the structured log. Deployments with
// a push channel replace it; the default server runs with this one.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(msg Notification) {
	fields := []zap.Field{
		zap.String("title", msg.Title),
		zap.String("description", msg.Description),
	}
	switch msg.Severity {
	case SeverityError:
		n.logger.Error("notification", fields...)
	case SeverityWarning:
		n.logger.Warn("notification", fields...)
	default:
		n.logger.Info("notification", fields...)
	}
}
