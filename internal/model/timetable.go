package model

// ScheduleEntry is one of today's classes as the overview payloads list
// them (start/end/room in HH:MM).
type ScheduleEntry struct {
	ID          string `json:"id"`
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Room        string `json:"room"`
	Section     string `json:"section,omitempty"`
	Teacher     string `json:"teacher,omitempty"`
}

// Running reports whether hhmm (HH:MM) falls inside the entry, bounds
// included.  HH:MM strings compare correctly as text.
func (e ScheduleEntry) Running(hhmm string) bool {
	return e.Start <= hhmm && hhmm <= e.End
}

// TimetableSlot is a weekly timetable slot.  The same shape is used for the
// student's weekly view, the teacher's slot list and 409 conflict bodies.
type TimetableSlot struct {
	Ref
	TeacherID   string `json:"teacherId,omitempty"`
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName,omitempty"`
	Section     string `json:"section"`
	DayOfWeek   int    `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	RoomNumber  string `json:"roomNumber,omitempty"`
}

// WeeklyTimetable maps day of week (0 = Sunday .. 6 = Saturday) to that
// day's slots in display order.
type WeeklyTimetable map[int][]TimetableSlot

// SlotRequest is the body of POST /teacher/timetable/slot.
type SlotRequest struct {
	TeacherID   string `json:"teacherId"`
	SubjectCode string `json:"subjectCode" validate:"required"`
	Section     string `json:"section" validate:"required"`
	DayOfWeek   int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime   string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string `json:"endTime" validate:"required,datetime=15:04"`
	RoomNumber  string `json:"roomNumber"`
}
