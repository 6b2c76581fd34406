package types

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// UserError is a failure meant to be shown to the user verbatim.
type UserError struct {
	Severity Severity
	Message  string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(severity Severity, message string) *UserError {
	return &UserError{Severity: severity, Message: message}
}
