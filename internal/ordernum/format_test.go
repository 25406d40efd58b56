package ordernum

import (
	"testing"
	"time"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFormatISO(t *testing.T) {
	tests := []struct {
		name      string
		sequence  int64
		createdAt string
		code      *int
		want      string
	}{
		{"padded customer and sequence", 42, "2024-03-05T10:00:00Z", intPtr(7), "0007-240305-0042"},
		{"missing customer code", 1, "2024-03-05T10:00:00Z", nil, "0000-240305-0001"},
		{"sequence widens past four digits", 10000, "2024-01-01T00:00:00Z", intPtr(1), "0001-240101-10000"},
		{"four digit customer code", 9, "2031-12-31T23:59:59Z", intPtr(1234), "1234-311231-0009"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatISO(tt.sequence, tt.createdAt, tt.code, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	createdAt := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	first := Format(42, createdAt, intPtr(7), time.UTC)
	second := Format(42, createdAt, intPtr(7), time.UTC)
	assert.Equal(t, first, second)
}

func TestFormatUsesConfiguredLocation(t *testing.T) {
	createdAt := time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC)
	behind := time.FixedZone("UTC-5", -5*60*60)

	assert.Equal(t, "0003-240305-0011", Format(11, createdAt, intPtr(3), time.UTC))
	assert.Equal(t, "0003-240304-0011", Format(11, createdAt, intPtr(3), behind))
}

func TestFormatISORejectsGarbage(t *testing.T) {
	_, err := FormatISO(1, "yesterday", nil, time.UTC)
	assert.Error(t, err)
}

func TestDisplay(t *testing.T) {
	createdAt := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	numbered := &models.Order{
		ID:             "3f2b8c1e-8d7a-4c55-9e1f-0a1b2c3d4e5f",
		SequenceNumber: 42,
		CustomerCode:   intPtr(7),
		CreatedAt:      createdAt,
	}
	assert.Equal(t, "0007-240305-0042", Display(numbered, time.UTC))

	legacy := &models.Order{ID: "3f2b8c1e-8d7a-4c55-9e1f-0a1b2c3d4e5f", CreatedAt: createdAt}
	assert.Equal(t, "2C3D4E5F", Display(legacy, time.UTC))
}
