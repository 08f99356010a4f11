package events

import "time"

// ErrorEvent is emitted when an error occurs during a gate run.
// It can represent both recoverable and fatal errors.
type ErrorEvent struct {
	BaseEvent
	Stage     string `json:"stage,omitempty"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

// NewErrorEvent creates an ErrorEvent. Stage names the phase that
// failed (input, policy, evaluation, regression, baseline).
func NewErrorEvent(runID, stage, errorType, message string, fatal bool) *ErrorEvent {
	return &ErrorEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeError,
			Time: time.Now(),
			Run:  runID,
		},
		Stage:     stage,
		ErrorType: errorType,
		Message:   message,
		Fatal:     fatal,
	}
}
