package reservation

// IsOverlapping reports whether candidate shares any instant with a record in
// existing for the same date and room. The record whose ID equals excludeID is
// skipped so an update never conflicts with itself. Intervals are half-open:
// one ending at 10:00 does not overlap one starting at 10:00.
func IsOverlapping(candidate Reservation, existing []Reservation, excludeID string) bool {
	_, found := FindOverlap(candidate, existing, excludeID)
	return found
}

// FindOverlap returns the first record in existing that overlaps candidate.
// Records with unparseable times never match.
func FindOverlap(candidate Reservation, existing []Reservation, excludeID string) (Reservation, bool) {
	start, end, err := candidate.Minutes()
	if err != nil {
		return Reservation{}, false
	}

	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.Date != candidate.Date || r.Room != candidate.Room {
			continue
		}
		rStart, rEnd, err := r.Minutes()
		if err != nil {
			continue
		}
		if start < rEnd && end > rStart {
			return r, true
		}
	}
	return Reservation{}, false
}
