package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking(id, date, start, end string, room Room) Reservation {
	return Reservation{ID: id, Date: date, StartTime: start, EndTime: end, Room: room}
}

func TestIsOverlapping(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		booking("a", "2025-03-10", "09:00", "10:00", RoomAuditorium),
		booking("lab", "2025-03-10", "09:00", "12:00", RoomComputerLab),
		booking("other-day", "2025-03-11", "09:00", "12:00", RoomAuditorium),
	}

	tests := []struct {
		name      string
		candidate Reservation
		excludeID string
		want      bool
	}{
		{
			name:      "partial overlap on the same room and date",
			candidate: booking("", "2025-03-10", "09:30", "10:30", RoomAuditorium),
			want:      true,
		},
		{
			name:      "candidate contains existing interval",
			candidate: booking("", "2025-03-10", "08:00", "11:00", RoomAuditorium),
			want:      true,
		},
		{
			name:      "candidate inside existing interval",
			candidate: booking("", "2025-03-10", "09:15", "09:45", RoomAuditorium),
			want:      true,
		},
		{
			name:      "end touching start is not an overlap",
			candidate: booking("", "2025-03-10", "10:00", "11:00", RoomAuditorium),
			want:      false,
		},
		{
			name:      "start touching end is not an overlap",
			candidate: booking("", "2025-03-10", "08:00", "09:00", RoomAuditorium),
			want:      false,
		},
		{
			name:      "different room on the same slot",
			candidate: booking("", "2025-03-11", "09:00", "12:00", RoomComputerLab),
			want:      false,
		},
		{
			name:      "different date on the same room",
			candidate: booking("", "2025-03-12", "09:00", "10:00", RoomAuditorium),
			want:      false,
		},
		{
			name:      "update never conflicts with itself",
			candidate: booking("a", "2025-03-10", "09:00", "10:00", RoomAuditorium),
			excludeID: "a",
			want:      false,
		},
		{
			name:      "excluding self still detects other conflicts",
			candidate: booking("lab", "2025-03-10", "09:30", "10:30", RoomAuditorium),
			excludeID: "lab",
			want:      true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsOverlapping(tc.candidate, existing, tc.excludeID))
		})
	}
}

func TestFindOverlapReturnsBlockingRecord(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		booking("a", "2025-03-10", "09:00", "10:00", RoomAuditorium),
		booking("b", "2025-03-10", "10:00", "11:00", RoomAuditorium),
	}

	blocking, found := FindOverlap(booking("", "2025-03-10", "10:30", "12:00", RoomAuditorium), existing, "")
	require.True(t, found)
	assert.Equal(t, "b", blocking.ID)
}

func TestFindOverlapIgnoresMalformedTimes(t *testing.T) {
	t.Parallel()

	existing := []Reservation{booking("broken", "2025-03-10", "9h", "", RoomAuditorium)}

	_, found := FindOverlap(booking("", "2025-03-10", "09:00", "10:00", RoomAuditorium), existing, "")
	assert.False(t, found)

	_, found = FindOverlap(booking("", "2025-03-10", "nine", "10:00", RoomAuditorium), nil, "")
	assert.False(t, found)
}

func TestScenarioSequentialBookings(t *testing.T) {
	t.Parallel()

	var accepted []Reservation
	a := booking("A", "2025-03-10", "09:00", "10:00", RoomAuditorium)
	require.False(t, IsOverlapping(a, accepted, ""))
	accepted = append(accepted, a)

	b := booking("B", "2025-03-10", "09:30", "10:30", RoomAuditorium)
	assert.True(t, IsOverlapping(b, accepted, ""), "B overlaps A")

	c := booking("C", "2025-03-10", "10:00", "11:00", RoomAuditorium)
	assert.False(t, IsOverlapping(c, accepted, ""), "C is adjacent to A")
}
