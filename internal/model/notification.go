package model

import "time"

// Notification is a persisted, server-backed message.  Unlike a Toast it
// has an IsRead flag that changes only through the batch mark-read call.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Href      string    `json:"href,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarkReadRequest is the body of PATCH /student/notifications/mark-read.
type MarkReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}
