package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptionType(t *testing.T) {
	tests := []struct {
		in   string
		want OptionType
		ok   bool
	}{
		{"CALL", OptionTypeCall, true},
		{" ce ", OptionTypeCall, true},
		{"PUT", OptionTypePut, true},
		{"pe", OptionTypePut, true},
		{"STRADDLE", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseOptionType(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
