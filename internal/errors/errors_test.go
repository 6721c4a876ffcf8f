package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestScanError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewScanError(CodeScanFailed, "scan failed")
		if err.Code != CodeScanFailed {
			t.Errorf("Expected code %s, got %s", CodeScanFailed, err.Code)
		}
		if err.Context == nil {
			t.Error("Context should be initialized")
		}
	})

	t.Run("error with target", func(t *testing.T) {
		err := NewScanErrorWithTarget(CodeTargetInvalid, "bad cidr", "10.0.0.0/33")
		expected := "[TARGET_INVALID] bad cidr (target: 10.0.0.0/33)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("lookup failed")
		err := WrapScanErrorWithTarget(CodeNameResolution, "could not resolve hostname", "nope.invalid", cause)
		if !errors.Is(err, cause) {
			t.Error("wrapped cause should be reachable through errors.Is")
		}
	})

	t.Run("with context", func(t *testing.T) {
		err := NewScanError(CodeProbeFault, "probe panicked").WithContext("port", 22)
		if err.Context["port"] != 22 {
			t.Errorf("Expected context port 22, got %v", err.Context["port"])
		}
	})
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := ErrInvalidPortRange(100, 10)
	wrapped := fmt.Errorf("partition: %w", inner)

	if got := GetCode(wrapped); got != CodeTargetInvalid {
		t.Errorf("Expected %s, got %s", CodeTargetInvalid, got)
	}
	if !IsCode(wrapped, CodeTargetInvalid) {
		t.Error("IsCode should see through fmt.Errorf wrapping")
	}
	if IsCode(nil, CodeUnknown) {
		t.Error("nil error has no code")
	}
	if got := GetCode(errors.New("plain")); got != CodeUnknown {
		t.Errorf("Expected %s for plain error, got %s", CodeUnknown, got)
	}
}

func TestDiscoveryError(t *testing.T) {
	cause := errors.New("no interfaces")
	err := ErrDiscoveryFailed("", cause)
	if err.Error() != "[DISCOVERY_FAILED] Network discovery failed" {
		t.Errorf("unexpected message %q", err.Error())
	}

	err = ErrDiscoveryFailed("10.0.0.0/24", cause)
	if err.Error() != "[DISCOVERY_FAILED] Network discovery failed (network: 10.0.0.0/24)" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
}

func TestConfigError(t *testing.T) {
	err := ErrConfigInvalid("scanning.port_workers", 0)
	if err.Field != "scanning.port_workers" {
		t.Errorf("unexpected field %q", err.Field)
	}
	if GetCode(err) != CodeValidation {
		t.Errorf("Expected %s, got %s", CodeValidation, GetCode(err))
	}

	missing := ErrConfigMissing("api.port")
	if !IsFatal(missing) {
		t.Error("missing configuration should be fatal")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
	}{
		{"timeout", NewScanError(CodeTimeout, "t"), true, false},
		{"invalid target", ErrInvalidTarget("x", "malformed"), false, true},
		{"permission", NewScanError(CodePermission, "p"), false, true},
		{"refused", NewScanError(CodeConnectionRefused, "r"), false, false},
		{"plain", errors.New("plain"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestSessionReused(t *testing.T) {
	err := ErrSessionReused("abc")
	if !IsCode(err, CodeSessionReused) {
		t.Errorf("unexpected code %s", err.Code)
	}
}
