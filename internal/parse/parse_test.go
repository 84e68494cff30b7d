package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlate(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		standard  bool
		expectErr bool
	}{
		{name: "Old format", raw: "ABC1234", expected: "ABC1234", standard: true},
		{name: "Mercosul format", raw: "abc1d23", expected: "ABC1D23", standard: true},
		{name: "Dash and spaces", raw: " abc-1234 ", expected: "ABC1234", standard: true},
		{name: "Foreign plate", raw: "CD 12 34 AB", expected: "CD1234AB", standard: false},
		{name: "Empty", raw: "  ", expectErr: true},
		{name: "Symbols", raw: "ABC#123", expectErr: true},
		{name: "Too long", raw: "ABCDEFGHIJKLMNOPQ", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Plate(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.standard, IsStandardPlate(got))
		})
	}
}

func TestTimestamp(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	testCases := []struct {
		name      string
		raw       string
		expected  *time.Time
		expectErr bool
	}{
		{name: "Empty is nil", raw: ""},
		{
			name:     "RFC3339 with offset",
			raw:      "2025-01-01T12:00:00Z",
			expected: ptr(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)),
		},
		{
			name:     "Zone-less in garage time",
			raw:      "2025-01-01T10:30:00",
			expected: ptr(time.Date(2025, 1, 1, 13, 30, 0, 0, time.UTC)),
		},
		{
			name:     "Fractional seconds",
			raw:      "2025-01-01T10:30:00.500",
			expected: ptr(time.Date(2025, 1, 1, 13, 30, 0, 500_000_000, time.UTC)),
		},
		{name: "Garbage", raw: "yesterday", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Timestamp(tc.raw, saoPaulo)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.expected.Equal(*got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestDate(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	day, err := Date("2025-01-01", saoPaulo)
	require.NoError(t, err)
	assert.True(t, day.Equal(time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)))

	_, err = Date("01/01/2025", saoPaulo)
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
