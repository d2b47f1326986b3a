package validation

import (
	"errors"
	"testing"
)

func TestResponseTime(t *testing.T) {
	tests := []struct {
		name    string
		ms      int
		want    int
		wantErr bool
	}{
		{name: "zero", ms: 0, want: 0},
		{name: "within limit", ms: 2500, want: 2500},
		{name: "at limit", ms: 10000, want: 10000},
		{name: "above limit is clamped", ms: 45000, want: 10000},
		{name: "negative", ms: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResponseTime(tt.ms, 10000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResponseTime(%d) error = %v, wantErr %v", tt.ms, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ResponseTime(%d) = %d, want %d", tt.ms, got, tt.want)
			}
		})
	}
}

func TestRequireID(t *testing.T) {
	if err := RequireID("wordId", "w1"); err != nil {
		t.Errorf("RequireID() error = %v", err)
	}
	err := RequireID("wordId", "  ")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("RequireID() error = %v, want ValidationError", err)
	}
	if verr.Field != "wordId" {
		t.Errorf("Field = %q, want wordId", verr.Field)
	}
}

func TestLimit(t *testing.T) {
	for _, n := range []int{0, 1, 20, MaxTopWordsLimit} {
		if err := Limit(n); err != nil {
			t.Errorf("Limit(%d) error = %v", n, err)
		}
	}
	for _, n := range []int{-1, MaxTopWordsLimit + 1} {
		if err := Limit(n); err == nil {
			t.Errorf("Limit(%d) should fail", n)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "teacher@school.edu.hk"},
		{name: "valid email with plus", email: "user+tag@example.com"},
		{name: "missing @", email: "testexample.com", wantErr: true},
		{name: "missing domain", email: "test@", wantErr: true},
		{name: "empty string", email: "", wantErr: true},
		{name: "spaces in email", email: "test @example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWord(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		jyutping string
		wantErr  bool
	}{
		{name: "two syllables", text: "你好", jyutping: "nei5 hou2"},
		{name: "single syllable", text: "我", jyutping: "ngo5"},
		{name: "syllabic nasal", text: "唔該", jyutping: "m4 goi1"},
		{name: "missing tone", text: "你好", jyutping: "nei hou2", wantErr: true},
		{name: "tone out of range", text: "你", jyutping: "nei7", wantErr: true},
		{name: "uppercase", text: "你", jyutping: "Nei5", wantErr: true},
		{name: "empty text", text: " ", jyutping: "nei5", wantErr: true},
		{name: "empty jyutping", text: "你", jyutping: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWord(tt.text, tt.jyutping)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWord(%q, %q) error = %v, wantErr %v", tt.text, tt.jyutping, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDeckName(t *testing.T) {
	if err := ValidateDeckName("Animals 動物"); err != nil {
		t.Errorf("ValidateDeckName() error = %v", err)
	}
	if err := ValidateDeckName(""); err == nil {
		t.Error("ValidateDeckName(\"\") should fail")
	}
}
