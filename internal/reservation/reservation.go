// Package reservation holds the room reservation domain: the canonical record,
// the room enumeration, time parsing and the pure overlap and filter rules.
package reservation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Room identifies one bookable space.
type Room string

const (
	// RoomAuditorium is the main auditorium.
	RoomAuditorium Room = "Auditório"
	// RoomComputerLab is the computer laboratory.
	RoomComputerLab Room = "Laboratório de Informática"
)

// StatusReserved is the status written on every stored reservation.
const StatusReserved = "Reservado"

// DateLayout is the canonical calendar date layout.
const DateLayout = "2006-01-02"

// DisplayDateLayout is the layout used in reports.
const DisplayDateLayout = "02/01/2006"

var (
	// ErrInvalidClock is returned when a wall-clock value is not HH:MM.
	ErrInvalidClock = errors.New("reservation: invalid clock value")
	// ErrInvalidDate is returned when a date cannot be normalized.
	ErrInvalidDate = errors.New("reservation: invalid date")
)

// Rooms returns the closed room enumeration in display order.
func Rooms() []Room {
	return []Room{RoomAuditorium, RoomComputerLab}
}

// Valid reports whether the room belongs to the enumeration.
func (r Room) Valid() bool {
	for _, candidate := range Rooms() {
		if r == candidate {
			return true
		}
	}
	return false
}

// Reservation is a booking of one room for one interval on one date.
type Reservation struct {
	ID              string
	Date            string
	StartTime       string
	EndTime         string
	Room            Room
	Requester       string
	EventTitle      string
	Notes           string
	Status          string
	CreatorIdentity string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TimeRange renders the interval as "HH:MM - HH:MM".
func (r Reservation) TimeRange() string {
	return r.StartTime + " - " + r.EndTime
}

// Minutes returns the interval bounds in minutes since midnight.
func (r Reservation) Minutes() (start, end int, err error) {
	start, err = ParseClock(r.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(r.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseClock converts an "HH:MM" wall-clock value to minutes since midnight.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return hours*60 + minutes, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeDate returns the YYYY-MM-DD form of a date. ISO timestamps are
// truncated to their date part.
func NormalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if datePart, _, found := strings.Cut(value, "T"); found {
		value = datePart
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed.Format(DateLayout), nil
}

// FormatDisplayDate renders a YYYY-MM-DD date as DD/MM/YYYY. Values that do
// not parse are returned unchanged.
func FormatDisplayDate(value string) string {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return parsed.Format(DisplayDateLayout)
}

// IsPastDate reports whether date lies strictly before the calendar day of now
// in now's location.
func IsPastDate(date string, now time.Time) bool {
	parsed, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return parsed.Before(today)
}
