package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors: ", len(e)))
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate validates the Settings fields and returns any validation errors.
func (s *Settings) Validate() error {
	var errs ValidationErrors

	if s.Input.Deadzone < 0 || s.Input.Deadzone > 1 {
		errs = append(errs, ValidationError{Field: "Input.Deadzone", Message: "must be between 0 and 1"})
	}
	if s.Input.ResponseCurve <= 0 {
		errs = append(errs, ValidationError{Field: "Input.ResponseCurve", Message: "must be positive"})
	}
	if !isValidAnalogFunction(s.Input.AnalogFunction) && s.Input.AnalogFunction != "" {
		errs = append(errs, ValidationError{
			Field:   "Input.AnalogFunction",
			Message: fmt.Sprintf("invalid analog function %q, must be one of: both, c_stick, touchscreen, toggle", s.Input.AnalogFunction),
		})
	}
	if s.Core.SpeedupRatio <= 0 {
		errs = append(errs, ValidationError{Field: "Core.SpeedupRatio", Message: "must be positive"})
	}
	if s.Core.MaxSpeed < 0 {
		errs = append(errs, ValidationError{Field: "Core.MaxSpeed", Message: "cannot be negative"})
	}
	if !isValidLogLevel(s.Logging.Level) && s.Logging.Level != "" {
		errs = append(errs, ValidationError{
			Field:   "Logging.Level",
			Message: fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", s.Logging.Level),
		})
	}
	if !isValidLogFormat(s.Logging.Format) && s.Logging.Format != "" {
		errs = append(errs, ValidationError{
			Field:   "Logging.Format",
			Message: fmt.Sprintf("invalid log format %q, must be one of: json, text", s.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isValidAnalogFunction(fn string) bool {
	switch fn {
	case CStickFunctionBoth, CStickFunctionCStick, CStickFunctionTouchscreen, CStickFunctionToggle:
		return true
	}
	return false
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch format {
	case "json", "text":
		return true
	}
	return false
}
