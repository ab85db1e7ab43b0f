package notify

// Severity of an admin notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers operator-facing messages. Delivery is best effort;
// implementations log failures and never return them into the
// reconciliation path.
type Notifier interface {
	Notify(severity Severity, message string)
}
