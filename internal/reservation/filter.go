package reservation

import "strings"

// Filter narrows a reservation collection. Empty fields match everything.
type Filter struct {
	Date      string
	Room      Room
	Requester string
	Creator   string
}

// IsEmpty reports whether no criterion is set.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Date) == "" &&
		strings.TrimSpace(string(f.Room)) == "" &&
		strings.TrimSpace(f.Requester) == "" &&
		strings.TrimSpace(f.Creator) == ""
}

// Match reports whether r satisfies every criterion of the filter.
func (f Filter) Match(r Reservation) bool {
	if date := strings.TrimSpace(f.Date); date != "" {
		if normalized, err := NormalizeDate(date); err == nil {
			date = normalized
		}
		recordDate := r.Date
		if normalized, err := NormalizeDate(recordDate); err == nil {
			recordDate = normalized
		}
		if recordDate != date {
			return false
		}
	}
	if room := Room(strings.TrimSpace(string(f.Room))); room != "" && r.Room != room {
		return false
	}
	if requester := strings.TrimSpace(f.Requester); requester != "" {
		if !strings.Contains(strings.ToLower(r.Requester), strings.ToLower(requester)) {
			return false
		}
	}
	if creator := strings.TrimSpace(f.Creator); creator != "" && !strings.EqualFold(r.CreatorIdentity, creator) {
		return false
	}
	return true
}

// ApplyFilters returns the records matching filter in their original order.
// The input slice is never modified.
func ApplyFilters(records []Reservation, filter Filter) []Reservation {
	out := make([]Reservation, 0, len(records))
	for _, r := range records {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
