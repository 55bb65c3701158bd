package model

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Correction request types.
const (
	CorrectionMedical = "medical"
	CorrectionEvent   = "event"
	CorrectionGeneral = "general"
)

// CorrectionLabel returns the display label of a correction type.
func CorrectionLabel(kind string) string {
	switch kind {
	case CorrectionMedical:
		return "Medical"
	case CorrectionEvent:
		return "Event"
	default:
		return "General"
	}
}

// CorrectionForm is what the student fills in.
type CorrectionForm struct {
	Type        string `json:"type" validate:"omitempty,oneof=medical event general"`
	SubjectCode string `json:"subjectCode"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes"`
}

// CorrectionRequestBody is the body of POST /student/attendance-request.
type CorrectionRequestBody struct {
	StudentID string `json:"studentId"`
	SubjectID string `json:"subjectId,omitempty"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	DateFrom  string `json:"dateFrom,omitempty"`
	DateTo    string `json:"dateTo,omitempty"`
}

// CorrectionRecord is a correction request as the backend stores it.
type CorrectionRecord struct {
	Ref
	Type        string      `json:"type"`
	Reason      string      `json:"reason"`
	Status      string      `json:"status"`
	DateFrom    string      `json:"dateFrom,omitempty"`
	DateTo      string      `json:"dateTo,omitempty"`
	CreatedAt   string      `json:"createdAt,omitempty"`
	SubjectCode string      `json:"subjectCode,omitempty"`
	Subject     *SubjectRef `json:"subject,omitempty"`
	Student     *StudentRef `json:"student,omitempty"`
	TeacherNote string      `json:"teacherNote,omitempty"`
}

// SubjectRef is the populated subject of a correction record.
type SubjectRef struct {
	ID   string `json:"_id,omitempty"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// StudentRef is the populated student of a correction record.
type StudentRef struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	AdmissionNo string `json:"admissionNo"`
}

// CorrectionRequest is the student's display row of a correction request.
type CorrectionRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	TypeLabel   string `json:"typeLabel"`
	SubjectCode string `json:"subjectCode"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
	Status      string `json:"status"`
}

// SelfStudyForm is what the student fills in.
type SelfStudyForm struct {
	SubjectCode string `json:"subjectCode" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description"`
	FileURL     string `json:"fileUrl" validate:"omitempty,url"`
}

// SelfStudyBody is the body of POST /student/self-study.
type SelfStudyBody struct {
	StudentID   string `json:"studentId"`
	SubjectCode string `json:"subjectCode"`
	Date        string `json:"date"`
	Description string `json:"description"`
	FileURL     string `json:"fileUrl"`
}

// SelfStudySubmission is a self-study claim.  Teachers see StudentName and
// AdmissionNo; students see their own list.
type SelfStudySubmission struct {
	Ref
	StudentName string `json:"studentName,omitempty"`
	AdmissionNo string `json:"admissionNo,omitempty"`
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName"`
	Date        string `json:"date"`
	Description string `json:"description"`
	FileURL     string `json:"fileUrl"`
	Status      string `json:"status"`
	TeacherNote string `json:"teacherNote"`
}

// Decision is the body of a teacher decision call.
type Decision struct {
	Status      string `json:"status" validate:"required,oneof=approved rejected"`
	TeacherNote string `json:"teacherNote"`
}
