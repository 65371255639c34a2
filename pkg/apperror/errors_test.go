// Package apperror provides tests for the custom error types and utility functions.
package apperror

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without field",
			err:      New(CodeValidation, "request is invalid"),
			expected: "[VALIDATION_ERROR] request is invalid",
		},
		{
			name:     "with field",
			err:      NewWithField(CodeInvalidCoordinate, "latitude out of range", "start.lat"),
			expected: "[INVALID_COORDINATE] latitude out of range (field: start.lat)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, CodeInternal, "wrapped error")

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       ErrorCode
		wantStatus int
	}{
		{"validation", CodeValidation, http.StatusBadRequest},
		{"invalid coordinate", CodeInvalidCoordinate, http.StatusBadRequest},
		{"geocoding unresolved", CodeGeocodingUnresolved, http.StatusBadRequest},
		{"not found", CodeNotFound, http.StatusNotFound},
		{"unauthenticated", CodeUnauthenticated, http.StatusUnauthorized},
		{"permission denied", CodePermissionDenied, http.StatusForbidden},
		{"timeout", CodeTimeout, http.StatusGatewayTimeout},
		{"provider error", CodeProviderError, http.StatusBadGateway},
		{"routing engine error", CodeRoutingEngineError, http.StatusInternalServerError},
		{"planning infeasible", CodePlanningInfeasible, http.StatusUnprocessableEntity},
		{"store error", CodeStoreError, http.StatusInternalServerError},
		{"internal", CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "test message")
			if got := err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestError_ToHTTPResponse(t *testing.T) {
	err := NewWithField(CodeInvalidCoordinate, "out of range", "finish.lon")
	body := err.ToHTTPResponse()

	if body["error"] != CodeInvalidCoordinate {
		t.Errorf("error code = %v, want %v", body["error"], CodeInvalidCoordinate)
	}
	if body["message"] != "out of range" {
		t.Errorf("message = %v, want 'out of range'", body["message"])
	}
	if body["field"] != "finish.lon" {
		t.Errorf("field = %v, want 'finish.lon'", body["field"])
	}
}

func TestNew(t *testing.T) {
	err := New(CodeGeocodingUnresolved, "address not found")

	if err.Code != CodeGeocodingUnresolved {
		t.Errorf("Code = %v, want %v", err.Code, CodeGeocodingUnresolved)
	}
	if err.Message != "address not found" {
		t.Errorf("Message = %v, want %v", err.Message, "address not found")
	}
	if err.Severity != SeverityError {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityError)
	}
}

func TestNewWarning(t *testing.T) {
	err := NewWarning(CodeProviderError, "provider degraded")

	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityWarning)
	}
}

func TestNewCritical(t *testing.T) {
	err := NewCritical(CodeInternal, "critical failure")

	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetails("field_count", 5).
		WithDetails("retryable", false)

	if err.Details["field_count"] != 5 {
		t.Errorf("Details[field_count] = %v, want 5", err.Details["field_count"])
	}
	if err.Details["retryable"] != false {
		t.Errorf("Details[retryable] = %v, want false", err.Details["retryable"])
	}
}

func TestWithField(t *testing.T) {
	err := New(CodeInvalidCoordinate, "invalid").WithField("start.lat")

	if err.Field != "start.lat" {
		t.Errorf("Field = %v, want start.lat", err.Field)
	}
}

func TestWithSeverity(t *testing.T) {
	err := New(CodeValidation, "invalid").WithSeverity(SeverityCritical)

	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

func TestIs(t *testing.T) {
	err := New(CodeGeocodingUnresolved, "unresolved")

	if !Is(err, CodeGeocodingUnresolved) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, CodeValidation) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(errors.New("regular error"), CodeGeocodingUnresolved) {
		t.Error("Is() should return false for non-Error")
	}
}

func TestCode(t *testing.T) {
	err := New(CodePlanningInfeasible, "infeasible")

	if Code(err) != CodePlanningInfeasible {
		t.Errorf("Code() = %v, want %v", Code(err), CodePlanningInfeasible)
	}

	regularErr := errors.New("regular error")
	if Code(regularErr) != CodeInternal {
		t.Errorf("Code() for regular error = %v, want %v", Code(regularErr), CodeInternal)
	}
}

func TestIsWarning(t *testing.T) {
	warning := NewWarning(CodeProviderError, "degraded")
	err := New(CodeValidation, "invalid")

	if !IsWarning(warning) {
		t.Error("IsWarning() should return true for warning")
	}
	if IsWarning(err) {
		t.Error("IsWarning() should return false for error")
	}
}

func TestIsCritical(t *testing.T) {
	critical := NewCritical(CodeInternal, "critical")
	err := New(CodeValidation, "invalid")

	if !IsCritical(critical) {
		t.Error("IsCritical() should return true for critical")
	}
	if IsCritical(err) {
		t.Error("IsCritical() should return false for error")
	}
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.severity.String(); got != tt.expected {
			t.Errorf("Severity.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	t.Run("new validation errors", func(t *testing.T) {
		ve := NewValidationErrors()
		if ve.HasErrors() {
			t.Error("new ValidationErrors should not have errors")
		}
		if ve.HasWarnings() {
			t.Error("new ValidationErrors should not have warnings")
		}
		if !ve.IsValid() {
			t.Error("new ValidationErrors should be valid")
		}
	})

	t.Run("add error", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddError(CodeValidation, "invalid request")

		if !ve.HasErrors() {
			t.Error("should have errors")
		}
		if ve.IsValid() {
			t.Error("should not be valid")
		}
		if len(ve.Errors) != 1 {
			t.Errorf("errors count = %d, want 1", len(ve.Errors))
		}
	})

	t.Run("add warning", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddWarning(CodeProviderError, "provider degraded")

		if !ve.HasWarnings() {
			t.Error("should have warnings")
		}
		if !ve.IsValid() {
			t.Error("should be valid (warnings don't affect validity)")
		}
	})

	t.Run("add error with field", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddErrorWithField(CodeInvalidCoordinate, "invalid", "start.lat")

		if ve.Errors[0].Field != "start.lat" {
			t.Errorf("Field = %v, want start.lat", ve.Errors[0].Field)
		}
	})

	t.Run("add via Add method", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.Add(NewWarning(CodeProviderError, "warning"))
		ve.Add(New(CodeValidation, "error"))

		if len(ve.Warnings) != 1 {
			t.Errorf("warnings count = %d, want 1", len(ve.Warnings))
		}
		if len(ve.Errors) != 1 {
			t.Errorf("errors count = %d, want 1", len(ve.Errors))
		}
	})

	t.Run("merge", func(t *testing.T) {
		ve1 := NewValidationErrors()
		ve1.AddError(CodeValidation, "error1")

		ve2 := NewValidationErrors()
		ve2.AddError(CodeInvalidCoordinate, "error2")
		ve2.AddWarning(CodeProviderError, "warning")

		ve1.Merge(ve2)

		if len(ve1.Errors) != 2 {
			t.Errorf("errors count = %d, want 2", len(ve1.Errors))
		}
		if len(ve1.Warnings) != 1 {
			t.Errorf("warnings count = %d, want 1", len(ve1.Warnings))
		}
	})

	t.Run("merge nil", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.Merge(nil) // should not panic
	})

	t.Run("error messages", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddError(CodeValidation, "error1")
		ve.AddError(CodeInvalidCoordinate, "error2")

		messages := ve.ErrorMessages()
		if len(messages) != 2 {
			t.Errorf("messages count = %d, want 2", len(messages))
		}
	})

	t.Run("warning messages", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddWarning(CodeProviderError, "warning1")

		messages := ve.WarningMessages()
		if len(messages) != 1 {
			t.Errorf("messages count = %d, want 1", len(messages))
		}
		if messages[0] != "warning1" {
			t.Errorf("message = %v, want warning1", messages[0])
		}
	})
}

func TestPredefinedErrors(t *testing.T) {
	predefinedErrors := []*Error{
		ErrGeocodingUnresolved,
		ErrPlanningInfeasible,
		ErrRoutingEngineError,
		ErrTimeout,
		ErrNotFound,
	}

	for _, err := range predefinedErrors {
		if err == nil {
			t.Error("predefined error should not be nil")
			continue
		}
		if err.Code == "" {
			t.Error("predefined error should have a code")
		}
		if err.Message == "" {
			t.Error("predefined error should have a message")
		}
	}
}
