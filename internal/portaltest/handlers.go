package portaltest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/utils"
)

type loginReq struct {
	AdmissionNo string `json:"admissionNo"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (b *Backend) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := c.Param("role")
	var (
		acc account
		ok  bool
	)
	switch role {
	case model.RoleStudent:
		acc, ok = b.students[req.AdmissionNo]
	case model.RoleTeacher:
		acc, ok = b.teachers[strings.ToLower(strings.TrimSpace(req.Email))]
	default:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown role"})
	}
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}
	tok, _, err := utils.NewAccessToken(Secret, acc.user.ID, role, 2*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	return c.JSON(http.StatusOK, model.LoginResponse{Token: tok, User: acc.user})
}

// self reports whether the :id path parameter is the caller.
func (b *Backend) self(c echo.Context) bool {
	uid, _ := c.Get("user_id").(string)
	return uid != "" && uid == c.Param("id")
}

// ----- student -----

func (b *Backend) markAttendance(c echo.Context) error {
	var sub model.AttendanceSubmission
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if (sub.Lat == nil) != (sub.Lng == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lng go together"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var sess *Session
	for _, s := range b.Sessions {
		if s.Code == sub.SessionCode && !s.Ended {
			sess = s
		}
	}
	if sess == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired session code"})
	}
	for _, p := range sess.Present {
		if p.ID == sub.StudentID {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Attendance already marked for this session"})
		}
	}
	acc := b.students[StudentAdmNo]
	sess.Present = append(sess.Present, model.PresentStudent{ID: sub.StudentID, AdmissionNo: acc.user.AdmissionNo, Name: acc.user.Name})
	b.StudentOverview.QuickStats.ClassesAttended++
	return c.JSON(http.StatusOK, model.Ack{Message: "Attendance marked", Status: "present"})
}

func (b *Backend) studentOverview(c echo.Context) error {
	if !b.self(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, b.StudentOverview)
}

func (b *Backend) studentTimetable(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tt, ok := b.Timetables[c.Param("section")]
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{})
	}
	return c.JSON(http.StatusOK, tt)
}

func (b *Backend) studentCorrections(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.CorrectionRecord{}
	for _, r := range b.Corrections {
		if r.Student != nil && r.Student.ID == c.Param("id") {
			out = append(out, r)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) createCorrection(c echo.Context) error {
	var body model.CorrectionRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.StudentID == "" || body.SubjectID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "studentId and subjectId are required"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := model.CorrectionRecord{
		Ref:      model.Ref{OID: b.nextID("req")},
		Type:     body.Type,
		Reason:   body.Reason,
		Status:   model.StatusPending,
		DateFrom: body.DateFrom,
		DateTo:   body.DateTo,
		Student:  &model.StudentRef{ID: body.StudentID, Name: "Asha Rao", AdmissionNo: StudentAdmNo},
	}
	for _, s := range b.StudentOverview.Subjects {
		if s.SubjectID == body.SubjectID {
			rec.Subject = &model.SubjectRef{ID: s.SubjectID, Code: s.SubjectCode, Name: s.SubjectName}
		}
	}
	b.Corrections = append(b.Corrections, rec)
	return c.JSON(http.StatusCreated, rec)
}

func (b *Backend) studentSelfStudy(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.SelfStudySubmission{}
	for _, s := range b.SelfStudies {
		if s.AdmissionNo == StudentAdmNo && c.Param("id") == StudentID {
			out = append(out, s)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) createSelfStudy(c echo.Context) error {
	var body model.SelfStudyBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.SubjectCode == "" || body.Date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subjectCode and date are required"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := model.SelfStudySubmission{
		Ref:         model.Ref{OID: b.nextID("ss")},
		StudentName: "Asha Rao",
		AdmissionNo: StudentAdmNo,
		SubjectCode: body.SubjectCode,
		Date:        body.Date,
		Description: body.Description,
		FileURL:     body.FileURL,
		Status:      model.StatusPending,
	}
	b.SelfStudies = append(b.SelfStudies, s)
	return c.JSON(http.StatusCreated, s)
}

func (b *Backend) studentNotifications(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, b.Notifications)
}

func (b *Backend) markRead(c echo.Context) error {
	var req model.MarkReadRequest
	if err := c.Bind(&req); err != nil || len(req.NotificationIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "notificationIds required"})
	}
	ids := make(map[string]bool, len(req.NotificationIDs))
	for _, id := range req.NotificationIDs {
		ids[id] = true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Notifications {
		if ids[b.Notifications[i].ID] {
			b.Notifications[i].IsRead = true
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": len(ids)})
}

func (b *Backend) subjectHistory(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.History[c.Param("code")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "subject not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": h})
}

// ----- teacher -----

func (b *Backend) teacherOverview(c echo.Context) error {
	if !b.self(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, b.TeacherOverview)
}

func (b *Backend) atRisk(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, b.AtRisk)
}

func (b *Backend) teacherRequests(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.CorrectionRecord{}
	for _, r := range b.Corrections {
		if r.Status == model.StatusPending {
			out = append(out, r)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) decideRequest(c echo.Context) error {
	var d model.Decision
	if err := c.Bind(&d); err != nil || (d.Status != model.StatusApproved && d.Status != model.StatusRejected) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be approved or rejected"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Corrections {
		if b.Corrections[i].Key() == c.Param("id") {
			b.Corrections[i].Status = d.Status
			b.Corrections[i].TeacherNote = d.TeacherNote
			if d.Status == model.StatusApproved && len(b.AtRisk.Subjects) > 0 {
				b.AtRisk.Subjects = b.AtRisk.Subjects[1:]
			}
			return c.JSON(http.StatusOK, b.Corrections[i])
		}
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
}

func (b *Backend) teacherSelfStudy(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.SelfStudySubmission{}
	for _, s := range b.SelfStudies {
		if s.Status == model.StatusPending {
			out = append(out, s)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) decideSelfStudy(c echo.Context) error {
	var d model.Decision
	if err := c.Bind(&d); err != nil || (d.Status != model.StatusApproved && d.Status != model.StatusRejected) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be approved or rejected"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.SelfStudies {
		if b.SelfStudies[i].Key() == c.Param("id") {
			b.SelfStudies[i].Status = d.Status
			b.SelfStudies[i].TeacherNote = d.TeacherNote
			return c.JSON(http.StatusOK, b.SelfStudies[i])
		}
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "submission not found"})
}

func (b *Backend) teacherNotifications(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, b.TeacherNotes)
}

func (b *Backend) teacherTimetable(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.TimetableSlot{}
	for _, s := range b.Slots {
		if s.TeacherID == c.Param("id") {
			out = append(out, s)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) createSlot(c echo.Context) error {
	var req model.SlotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SubjectCode == "" || req.Section == "" || req.StartTime == "" || req.EndTime == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subjectCode, section, startTime and endTime are required"})
	}
	if req.StartTime >= req.EndTime {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "startTime must be before endTime"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conflicts := []model.TimetableSlot{}
	for _, s := range b.Slots {
		if s.Section == req.Section && s.DayOfWeek == req.DayOfWeek &&
			req.StartTime < s.EndTime && s.StartTime < req.EndTime {
			conflicts = append(conflicts, s)
		}
	}
	if len(conflicts) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     fmt.Sprintf("Slot overlaps %d existing class(es)", len(conflicts)),
			"conflicts": conflicts,
		})
	}
	slot := model.TimetableSlot{
		Ref:         model.Ref{OID: b.nextID("tt")},
		TeacherID:   req.TeacherID,
		SubjectCode: req.SubjectCode,
		Section:     req.Section,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		RoomNumber:  req.RoomNumber,
	}
	b.Slots = append(b.Slots, slot)
	tt := b.Timetables[req.Section]
	if tt == nil {
		tt = model.WeeklyTimetable{}
		b.Timetables[req.Section] = tt
	}
	tt[req.DayOfWeek] = append(tt[req.DayOfWeek], slot)
	return c.JSON(http.StatusCreated, slot)
}

func (b *Backend) classView(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.ClassViews[c.Param("code")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "subject not found"})
	}
	return c.JSON(http.StatusOK, v)
}

func (b *Backend) startSession(c echo.Context) error {
	var req model.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SubjectID == "" || req.Section == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subjectId and section are required"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID("sess")
	s := &Session{
		ID:        id,
		Code:      "QR-" + strings.ToUpper(id),
		SubjectID: req.SubjectID,
		Section:   req.Section,
		Room:      req.RoomNumber,
		Lat:       req.Lat,
		Lng:       req.Lng,
	}
	b.Sessions[id] = s
	return c.JSON(http.StatusCreated, model.StartedSession{
		Ref:             model.Ref{OID: id},
		SessionCode:     s.Code,
		PresentStudents: []model.PresentStudent{},
	})
}

func (b *Backend) liveRoster(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.Sessions[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, model.LiveRoster{
		PresentCount:    len(s.Present),
		PresentStudents: append([]model.PresentStudent{}, s.Present...),
	})
}

func (b *Backend) exportSession(c echo.Context) error {
	b.mu.Lock()
	s, ok := b.Sessions[c.Param("id")]
	var rows []model.PresentStudent
	if ok {
		rows = append(rows, s.Present...)
	}
	b.mu.Unlock()
	if !ok && c.Param("id") != "sess-old" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	var sb strings.Builder
	sb.WriteString("admissionNo,name\n")
	for _, p := range rows {
		sb.WriteString(p.AdmissionNo + "," + p.Name + "\n")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="session-`+c.Param("id")+`.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(sb.String()))
}

func (b *Backend) endSession(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.Sessions[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	s.Ended = true
	return c.JSON(http.StatusOK, echo.Map{"ended": true})
}
