package models

// Realtime event names.
const (
	EventNotification   = "notification"
	EventDocumentUpdate = "documentUpdate"
)

// Notification is a user facing message pushed by the backend.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// DocumentEvent is pushed when a document changes status.
type DocumentEvent struct {
	DocumentID int64          `json:"documentId"`
	Status     DocumentStatus `json:"status"`
}
