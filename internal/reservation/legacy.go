package reservation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLegacySlot is returned when a legacy single-field time cannot be parsed.
var ErrInvalidLegacySlot = errors.New("reservation: invalid legacy slot")

// legacyDefaultDuration is applied when a legacy slot names only a start time.
const legacyDefaultDuration = 60

// ParseLegacySlot converts the older single-string time field into canonical
// start and end values. Accepted shapes: "09h", "10h30", "10:30", "09h-12h",
// "09:30-12:00", "10h30-12h". A lone start time books one hour.
func ParseLegacySlot(slot string) (start, end string, err error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidLegacySlot)
	}

	var startMin, endMin int
	if from, to, ok := strings.Cut(slot, "-"); ok {
		if startMin, err = parseLegacyClock(from); err != nil {
			return "", "", err
		}
		if endMin, err = parseLegacyClock(to); err != nil {
			return "", "", err
		}
	} else {
		if startMin, err = parseLegacyClock(slot); err != nil {
			return "", "", err
		}
		endMin = startMin + legacyDefaultDuration
	}

	if endMin <= startMin || endMin > 24*60 {
		return "", "", fmt.Errorf("%w: %q does not describe a forward interval", ErrInvalidLegacySlot, slot)
	}
	if endMin == 24*60 {
		endMin = 24*60 - 1
	}
	return FormatClock(startMin), FormatClock(endMin), nil
}

func parseLegacyClock(value string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Replace(value, "h", ":", 1)
	hh, mm, _ := strings.Cut(value, ":")

	hh = strings.TrimSpace(hh)
	hours, err := strconv.Atoi(hh)
	if err != nil || !digits(hh) || hours > 24 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLegacySlot, value)
	}
	minutes := 0
	if mm = strings.TrimSpace(mm); mm != "" {
		minutes, err = strconv.Atoi(mm)
		if err != nil || !digits(mm) || minutes > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLegacySlot, value)
		}
	}
	total := hours*60 + minutes
	if total > 24*60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLegacySlot, value)
	}
	return total, nil
}
