package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacySlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slot      string
		wantStart string
		wantEnd   string
	}{
		{slot: "09h", wantStart: "09:00", wantEnd: "10:00"},
		{slot: "10h", wantStart: "10:00", wantEnd: "11:00"},
		{slot: "10:30", wantStart: "10:30", wantEnd: "11:30"},
		{slot: "09h-12h", wantStart: "09:00", wantEnd: "12:00"},
		{slot: "09:30-12:00", wantStart: "09:30", wantEnd: "12:00"},
		{slot: "10h30-12h", wantStart: "10:30", wantEnd: "12:00"},
		{slot: " 8H - 9h15 ", wantStart: "08:00", wantEnd: "09:15"},
		{slot: "22h-24h", wantStart: "22:00", wantEnd: "23:59"},
	}

	for _, tc := range tests {
		t.Run(tc.slot, func(t *testing.T) {
			t.Parallel()
			start, end, err := ParseLegacySlot(tc.slot)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestParseLegacySlotRejectsMalformedValues(t *testing.T) {
	t.Parallel()

	for _, slot := range []string{"", "manhã", "12h-09h", "10h-10h", "23h30", "25h", "10h75", "+9h", "9h+5"} {
		_, _, err := ParseLegacySlot(slot)
		assert.ErrorIs(t, err, ErrInvalidLegacySlot, slot)
	}
}
