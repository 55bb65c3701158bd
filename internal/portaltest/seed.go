package portaltest

import (
	"strconv"
	"time"

	"github.com/iliyamo/classsync/internal/model"
)

func itoa(n int) string { return strconv.Itoa(n) }

func (b *Backend) seed() {
	b.students = map[string]account{
		StudentAdmNo: {
			user: model.User{ID: StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo, Section: StudentSection},
			hash: hash(StudentPassword),
		},
	}
	b.teachers = map[string]account{
		TeacherEmail: {
			user: model.User{ID: TeacherID, Name: "Meera Iyer", Email: TeacherEmail},
			hash: hash(TeacherPassword),
		},
	}

	today := model.ScheduleEntry{
		ID: TodaySlotID, SubjectCode: "CS101", SubjectName: "Data Structures",
		Start: "09:00", End: "10:00", Room: "C-305", Section: StudentSection, Teacher: "Meera Iyer",
	}
	b.StudentOverview = model.StudentOverview{
		Student: model.StudentProfile{ID: StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo, Section: StudentSection},
		Subjects: []model.SubjectStat{
			{SubjectID: "sub-cs101", SubjectCode: "CS101", SubjectName: "Data Structures", AttendancePercent: 80},
			{SubjectID: "sub-ma201", SubjectCode: "MA201", SubjectName: "Linear Algebra", AttendancePercent: 70},
		},
		QuickStats:    model.QuickStats{OverallAttendance: 75, ClassesAttended: 30, ClassesHeld: 40, StreakDays: 3},
		TodaySchedule: []model.ScheduleEntry{today},
	}
	b.TeacherOverview = model.TeacherOverview{
		Teacher: model.TeacherProfile{
			ID: TeacherID, Name: "Meera Iyer", Email: TeacherEmail,
			Subjects: []model.TeacherSubject{
				{Ref: model.Ref{ID: "sub-cs101"}, SubjectCode: "CS101", SubjectName: "Data Structures"},
				{Ref: model.Ref{OID: "sub-ma201"}, SubjectCode: "MA201", SubjectName: "Linear Algebra"},
			},
		},
		TodaySlots: []model.ScheduleEntry{today},
		RecentSessions: []model.RecentSession{
			{ID: "sess-old", SubjectCode: "CS101", SubjectName: "Data Structures", Section: StudentSection, Date: "2026-03-02", Present: 52, Total: 60, Percent: 86.7},
		},
	}

	monday := model.TimetableSlot{
		Ref: model.Ref{ID: MondaySlotID}, TeacherID: TeacherID, SubjectCode: "CS101", SubjectName: "Data Structures",
		Section: StudentSection, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", RoomNumber: "C-305",
	}
	b.Slots = []model.TimetableSlot{monday}
	b.Timetables = map[string]model.WeeklyTimetable{StudentSection: {1: {monday}}}

	b.Corrections = []model.CorrectionRecord{{
		Ref: model.Ref{OID: "req-1"}, Type: model.CorrectionMedical, Reason: "Fever", Status: model.StatusPending,
		DateFrom: "2026-03-03T00:00:00.000Z", DateTo: "2026-03-03T00:00:00.000Z",
		Subject: &model.SubjectRef{ID: "sub-cs101", Code: "CS101", Name: "Data Structures"},
		Student: &model.StudentRef{ID: StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo},
	}}
	b.SelfStudies = []model.SelfStudySubmission{{
		Ref: model.Ref{ID: "ss-1"}, StudentName: "Asha Rao", AdmissionNo: StudentAdmNo,
		SubjectCode: "MA201", SubjectName: "Linear Algebra", Date: "2026-03-04",
		Description: "Eigenvalues worksheet", Status: model.StatusPending,
	}}
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	b.Notifications = []model.Notification{
		{ID: "n-1", Type: "attendance_decision", Title: "Request approved", Message: "Your medical request was approved.", CreatedAt: created},
		{ID: "n-2", Type: "selfstudy_decision", Title: "Self-study rejected", Message: "Please attach a document.", CreatedAt: created},
		{ID: "n-3", Title: "Welcome", Message: "Welcome to ClassSync.", IsRead: true, CreatedAt: created},
	}
	b.TeacherNotes = []model.Notification{
		{ID: "tn-1", Title: "New request", Message: "Asha Rao submitted a correction request.", CreatedAt: created},
	}
	b.AtRisk = model.AtRisk{Threshold: 75, Subjects: []model.AtRiskSubject{{
		SubjectID: "sub-ma201", SubjectCode: "MA201", SubjectName: "Linear Algebra", AtRiskCount: 1,
		Students: []model.AtRiskStudent{{ID: StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo, AttendancePercent: 70}},
	}}}
	b.ClassViews = map[string]model.ClassView{
		"CS101": {SubjectCode: "CS101", SubjectName: "Data Structures", Students: []model.ClassViewStudent{
			{ID: StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo, Attended: 16, Held: 20, AttendancePercent: 80},
		}},
	}
	b.History = map[string][]model.HistoryEntry{
		"CS101": {
			{ID: "h-1", Date: "2026-03-02", Topic: "Linked lists", Status: "present"},
			{ID: "h-2", Date: "2026-03-03", Topic: "Stacks", Status: "absent"},
		},
	}
	b.Sessions = map[string]*Session{
		SeedSessionID: {ID: SeedSessionID, Code: SeedSessionCode, SubjectID: "sub-cs101", Section: StudentSection, Room: "C-305"},
	}
}
