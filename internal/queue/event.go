// Package queue defines the activity events exchanged over the message
// broker and the consumer that writes them to logs/activity.log.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// ActivityQueue is the durable queue activity events are routed to.
const ActivityQueue = "classsync.activity"

// Event types.
const (
	AttendanceMarked = "attendance.marked"
	SessionStarted   = "session.started"
	SessionEnded     = "session.ended"
)

// ActivityEvent is published after a successful attendance mark or a
// session lifecycle change.  Only the fields of its Type are set.
type ActivityEvent struct {
	EventID      string    `json:"eventId"`
	Type         string    `json:"type"`
	StudentID    string    `json:"studentId,omitempty"`
	SessionCode  string    `json:"sessionCode,omitempty"`
	WithLocation bool      `json:"withLocation,omitempty"`
	TeacherID    string    `json:"teacherId,omitempty"`
	SessionID    string    `json:"sessionId,omitempty"`
	SubjectCode  string    `json:"subjectCode,omitempty"`
	At           time.Time `json:"at"`
}

// NewAttendanceMarked builds an attendance.marked event.
func NewAttendanceMarked(studentID, sessionCode string, withLocation bool) ActivityEvent {
	return ActivityEvent{
		EventID:      uuid.NewString(),
		Type:         AttendanceMarked,
		StudentID:    studentID,
		SessionCode:  sessionCode,
		WithLocation: withLocation,
		At:           time.Now().UTC(),
	}
}

// NewSessionEvent builds a session.started or session.ended event.
func NewSessionEvent(typ, teacherID, sessionID, subjectCode string) ActivityEvent {
	return ActivityEvent{
		EventID:     uuid.NewString(),
		Type:        typ,
		TeacherID:   teacherID,
		SessionID:   sessionID,
		SubjectCode: subjectCode,
		At:          time.Now().UTC(),
	}
}
