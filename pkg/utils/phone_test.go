package utils

import (
	"strings"
	"testing"
)

func TestMaskPhoneNumber(t *testing.T) {
	masked := MaskPhoneNumber("+15558675309")
	if !strings.HasSuffix(masked, "5309") {
		t.Errorf("expected last four digits kept, got %q", masked)
	}
	if !strings.Contains(masked, "•") {
		t.Errorf("expected masking, got %q", masked)
	}
	if strings.Contains(masked, "8675309") {
		t.Errorf("middle digits exposed: %q", masked)
	}

	if got := MaskPhoneNumber(""); got != "" {
		t.Errorf("empty input: got %q", got)
	}
	if got := MaskPhoneNumber("abc"); got != "•••" {
		t.Errorf("short input: got %q", got)
	}
}

func TestValidateE164(t *testing.T) {
	valid := []string{"+15558675309", "+442071838750", "+919876543210"}
	for _, p := range valid {
		if !ValidateE164(p) {
			t.Errorf("expected %q valid", p)
		}
	}
	invalid := []string{"", "15558675309", "+0123", "+1 555 867 5309", "+"}
	for _, p := range invalid {
		if ValidateE164(p) {
			t.Errorf("expected %q invalid", p)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 867-5309": "+15558675309",
		"555-867-5309":      "+15558675309",
		"15558675309":       "+15558675309",
		"+442071838750":     "+442071838750",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}
