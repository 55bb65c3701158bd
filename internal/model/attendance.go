package model

// Position is a device location in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AttendanceSubmission is the body of POST /student/mark-attendance.  It is
// built per scan, sent once and discarded.  Lat and Lng are either both set
// or both nil; use NewSubmission to keep that invariant.
type AttendanceSubmission struct {
	StudentID   string   `json:"studentId"`
	SessionCode string   `json:"sessionCode"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

// NewSubmission builds a submission, attaching coordinates only when pos is
// non-nil.
func NewSubmission(studentID, sessionCode string, pos *Position) AttendanceSubmission {
	s := AttendanceSubmission{StudentID: studentID, SessionCode: sessionCode}
	if pos != nil {
		lat, lng := pos.Lat, pos.Lng
		s.Lat, s.Lng = &lat, &lng
	}
	return s
}

// HasLocation reports whether coordinates are attached.
func (s AttendanceSubmission) HasLocation() bool { return s.Lat != nil && s.Lng != nil }

// Ack is the backend's answer to a mark-attendance call.
type Ack struct {
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// HistoryEntry is one row of a student's per-subject attendance history.
type HistoryEntry struct {
	ID     string `json:"id,omitempty"`
	Date   string `json:"date"`
	Topic  string `json:"topic,omitempty"`
	Status string `json:"status"`
}
