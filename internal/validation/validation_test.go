package validation

import (
	"strings"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"alice@example.com", true},
		{"a.b+tag@sub.example.co.uk", true},
		{"ALICE@EXAMPLE.COM", true},
		{"", false},
		{"no-at-sign.example.com", false},
		{"two@@example.com", false},
		{"spaces in@example.com", false},
		{"alice@nodot", false},
		{strings.Repeat("a", 250) + "@x.io", false}, // over 254 chars
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
		}
	}
}

func TestIsValidIP(t *testing.T) {
	tests := []struct {
		ip    string
		valid bool
	}{
		{"203.0.113.10", true},
		{"10.0.0.1", true},
		{"2001:db8::1", true},
		{"::1", true},
		{"", false},
		{"999.1.1.1", false},
		{"203.0.113", false},
		{"not-an-ip", false},
		{"203.0.113.10:8080", false},
	}

	for _, tt := range tests {
		if got := IsValidIP(tt.ip); got != tt.valid {
			t.Errorf("IsValidIP(%q) = %v, want %v", tt.ip, got, tt.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  alice  ", 64, "alice"},
		{"strips null bytes", "ali\x00ce", 64, "alice"},
		{"caps length", "abcdefgh", 4, "abcd"},
		{"empty passes through", "", 64, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	errs := Validate(
		Required("email", ""),
		ValidIP("ip", "not-an-ip"),
		MaxLength("name", "ok", 64),
	)

	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "email" || errs[1].Field != "ip" {
		t.Errorf("Unexpected error fields: %v", errs)
	}
}

func TestValidateAllPass(t *testing.T) {
	errs := Validate(
		Required("email", "alice@example.com"),
		ValidEmail("email", "alice@example.com"),
		ValidIP("ip", "203.0.113.10"),
		MaxLength("name", "Alice", 64),
	)
	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}
}

func TestOptionalValidatorsSkipEmpty(t *testing.T) {
	// ValidEmail, ValidIP and MaxLength all tolerate empty values; Required
	// is the only check that rejects them.
	errs := Validate(
		ValidEmail("email", ""),
		ValidIP("ip", ""),
		MaxLength("name", "", 64),
	)
	if len(errs) != 0 {
		t.Errorf("Expected no errors for empty optional fields, got %v", errs)
	}
}

func TestRequiredRejectsWhitespace(t *testing.T) {
	if err := Required("name", "   ")(); err == nil {
		t.Error("Expected whitespace-only value to fail Required")
	}
}

func TestValidationErrorsError(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("Unexpected empty error string: %q", empty.Error())
	}

	errs := ValidationErrors{{Field: "email", Message: "is required"}}
	if errs.Error() != "email: is required" {
		t.Errorf("Unexpected error string: %q", errs.Error())
	}
}
