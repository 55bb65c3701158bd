package model

// StudentOverview is the aggregate payload of GET /student/overview/{id}.
// Percentages, streaks and alerts are computed by the backend and consumed
// as opaque values.
type StudentOverview struct {
	Student        StudentProfile  `json:"student"`
	PriorityAlerts []Alert         `json:"priorityAlerts"`
	Subjects       []SubjectStat   `json:"subjects"`
	QuickStats     QuickStats      `json:"quickStats"`
	TodaySchedule  []ScheduleEntry `json:"todaySchedule"`
}

// StudentProfile is the student block of the overview.
type StudentProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AdmissionNo string `json:"admissionNo"`
	Section     string `json:"section"`
}

// Alert is a server-computed priority alert.
type Alert struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SubjectStat is one subject card of the student overview.
type SubjectStat struct {
	SubjectID         string  `json:"subjectId"`
	SubjectCode       string  `json:"subjectCode"`
	SubjectName       string  `json:"subjectName"`
	AttendancePercent float64 `json:"attendancePercent"`
}

// QuickStats is the summary block of the student overview.
type QuickStats struct {
	OverallAttendance float64 `json:"overallAttendance"`
	ClassesAttended   int     `json:"classesAttended"`
	ClassesHeld       int     `json:"classesHeld"`
	StreakDays        int     `json:"streakDays"`
}

// FindSubject returns the subject with the given code.
func (o *StudentOverview) FindSubject(code string) (SubjectStat, bool) {
	for _, s := range o.Subjects {
		if s.SubjectCode == code {
			return s, true
		}
	}
	return SubjectStat{}, false
}

// TeacherOverview is the payload of GET /teacher/overview/{id}.
type TeacherOverview struct {
	Teacher        TeacherProfile  `json:"teacher"`
	TodaySlots     []ScheduleEntry `json:"todaySlots"`
	RecentSessions []RecentSession `json:"recentSessions"`
}

// TeacherProfile is the teacher block of the overview.
type TeacherProfile struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email,omitempty"`
	Subjects []TeacherSubject `json:"subjects"`
}

// TeacherSubject is a subject the teacher is assigned to.
type TeacherSubject struct {
	Ref
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName"`
}

// AtRisk is the payload of GET /teacher/at-risk/{id}.
type AtRisk struct {
	Threshold float64         `json:"threshold"`
	Subjects  []AtRiskSubject `json:"subjects"`
}

// AtRiskSubject groups the at-risk students of one subject.
type AtRiskSubject struct {
	SubjectID   string          `json:"subjectId"`
	SubjectCode string          `json:"subjectCode"`
	SubjectName string          `json:"subjectName"`
	AtRiskCount int             `json:"atRiskCount"`
	Students    []AtRiskStudent `json:"students"`
}

// AtRiskStudent is a student below the backend's threshold.
type AtRiskStudent struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	AdmissionNo       string  `json:"admissionNo"`
	AttendancePercent float64 `json:"attendancePercent"`
}

// ClassView is the per-subject attendance table a teacher can open.
type ClassView struct {
	SubjectCode string             `json:"subjectCode"`
	SubjectName string             `json:"subjectName"`
	Students    []ClassViewStudent `json:"students"`
}

// ClassViewStudent is one row of a ClassView.
type ClassViewStudent struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	AdmissionNo       string  `json:"admissionNo"`
	Attended          int     `json:"attended"`
	Held              int     `json:"held"`
	AttendancePercent float64 `json:"attendancePercent"`
}
