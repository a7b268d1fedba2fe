package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCPF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "full cpf",
			input: "12345678901",
			want:  "123.456.789-01",
		},
		{
			name:  "already masked",
			input: "123.456.789-01",
			want:  "123.456.789-01",
		},
		{
			name:  "partial input",
			input: "12345",
			want:  "123.45",
		},
		{
			name:  "overlong input truncated",
			input: "123456789012345",
			want:  "123.456.789-01",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCPF(tt.input))
		})
	}
}

func TestNormalizeCPF(t *testing.T) {
	assert.Equal(t, "12345678901", NormalizeCPF("123.456.789-01"))
	assert.Equal(t, "", NormalizeCPF("abc"))
}

func TestFormatName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase words",
			input: "ana maria souza",
			want:  "Ana Maria Souza",
		},
		{
			name:  "mixed case",
			input: "aNA MARIA",
			want:  "Ana Maria",
		},
		{
			name:  "extra spaces collapsed",
			input: "  ana   maria ",
			want:  "Ana Maria",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatName(tt.input))
		})
	}
}

func TestContainsDigit(t *testing.T) {
	assert.True(t, ContainsDigit("Jo4o"))
	assert.False(t, ContainsDigit("Joao"))
}

func TestParseMovementKind(t *testing.T) {
	k, err := ParseMovementKind("DEPOSITO")
	assert.NoError(t, err)
	assert.Equal(t, MovementDeposit, k)

	_, err = ParseMovementKind("CREDITO")
	assert.Error(t, err)
}
