package model

// ClassSession is the gateway's copy of a teacher-started session.  The
// backend is authoritative; PresentCount and PresentStudents change only
// when the teacher explicitly refreshes the live roster.
type ClassSession struct {
	ID              string           `json:"id"`
	SubjectCode     string           `json:"subjectCode"`
	SubjectName     string           `json:"subjectName"`
	Start           string           `json:"start"`
	End             string           `json:"end"`
	Room            string           `json:"room"`
	QRToken         string           `json:"qrToken"`
	PresentCount    int              `json:"presentCount"`
	TotalExpected   int              `json:"totalExpected"`
	PresentStudents []PresentStudent `json:"presentStudents"`
}

// PresentStudent is one entry of a live roster.
type PresentStudent struct {
	ID          string `json:"id,omitempty"`
	AdmissionNo string `json:"admissionNo"`
	Name        string `json:"name"`
}

// StartSessionRequest is the body of POST /teacher/start-session.
type StartSessionRequest struct {
	SubjectID  string   `json:"subjectId"`
	Section    string   `json:"section"`
	RoomNumber string   `json:"roomNumber"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// StartedSession is the backend's answer to start-session.
type StartedSession struct {
	Ref
	SessionCode     string           `json:"sessionCode"`
	PresentStudents []PresentStudent `json:"presentStudents"`
}

// LiveRoster is the answer of GET /teacher/session/{id}.
type LiveRoster struct {
	PresentCount    int              `json:"presentCount"`
	PresentStudents []PresentStudent `json:"presentStudents"`
}

// RecentSession is a past session listed on the teacher overview.
type RecentSession struct {
	ID          string  `json:"id"`
	SubjectCode string  `json:"subjectCode"`
	SubjectName string  `json:"subjectName"`
	Section     string  `json:"section"`
	Date        string  `json:"date"`
	RoomNumber  string  `json:"roomNumber,omitempty"`
	Present     int     `json:"present"`
	Total       int     `json:"total"`
	Percent     float64 `json:"percent"`
}

// StartSessionForm selects the subject and today's slot to start.
type StartSessionForm struct {
	SubjectCode string `json:"subjectCode" validate:"required"`
	SlotID      string `json:"slotId" validate:"required"`
}
