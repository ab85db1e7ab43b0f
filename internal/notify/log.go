package notify

import "go.uber.org/zap"

// LogNotifier writes notifications to the structured log. Used in
// development and wherever no bot token is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(severity Severity, message string) {
	switch severity {
	case SeverityError:
		n.logger.Error(message)
	case SeverityWarning:
		n.logger.Warn(message)
	default:
		n.logger.Info(message)
	}
}
