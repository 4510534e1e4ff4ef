package models

import (
	"slices"
	"time"
)

// DocumentStatus is the overall status of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusSigning   DocumentStatus = "SIGNING"
	DocumentStatusCompleted DocumentStatus = "COMPLETED"
	DocumentStatusRejected  DocumentStatus = "REJECTED"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
)

// IsTerminal returns true once the signatories of a document are frozen.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusCompleted, DocumentStatusRejected, DocumentStatusCancelled:
		return true
	default:
		return false
	}
}

// SignatoryStatus is the status of a single signatory.
type SignatoryStatus string

const (
	SignatoryStatusPending  SignatoryStatus = "PENDING"
	SignatoryStatusSigned   SignatoryStatus = "SIGNED"
	SignatoryStatusRejected SignatoryStatus = "REJECTED"
)

// Document is an uploaded PDF and its signing workflow.
type Document struct {
	ID               int64                `json:"id"`
	OriginalFilename string               `json:"originalFilename"`
	StorageFilename  string               `json:"storageFilename,omitempty"`
	Title            string               `json:"title,omitempty"`
	Description      string               `json:"description,omitempty"`
	Status           DocumentStatus       `json:"status"`
	OwnerID          int64                `json:"ownerId"`
	Signatories      []*DocumentSignatory `json:"signatories"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// Clone returns a deep copy so views can mutate local state freely. Null
// signatory entries are dropped.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Signatories = make([]*DocumentSignatory, 0, len(d.Signatories))
	for _, sig := range d.Signatories {
		if sig == nil {
			continue
		}
		s := *sig
		clone.Signatories = append(clone.Signatories, &s)
	}
	return &clone
}

// Compact removes null signatory entries in place.
func (d *Document) Compact() {
	if d == nil {
		return
	}
	d.Signatories = slices.DeleteFunc(d.Signatories, func(sig *DocumentSignatory) bool {
		return sig == nil
	})
}

// SignatoryFor returns the signatory entry for userID, or nil.
func (d *Document) SignatoryFor(userID int64) *DocumentSignatory {
	if d == nil {
		return nil
	}
	for _, sig := range d.Signatories {
		if sig != nil && sig.UserID == userID {
			return sig
		}
	}
	return nil
}

// DocumentSignatory is a user assigned to sign a document at a fixed order.
type DocumentSignatory struct {
	ID              int64           `json:"id,omitempty"`
	UserID          int64           `json:"userId"`
	DocumentID      int64           `json:"documentId,omitempty"`
	Order           int             `json:"order"`
	Status          SignatoryStatus `json:"status"`
	SignedAt        *time.Time      `json:"signedAt,omitempty"`
	RejectionReason *string         `json:"rejectionReason,omitempty"`
	Name            string          `json:"name,omitempty"`
	Email           string          `json:"email,omitempty"`
}

// SignatoryInput assigns a user at upload time.
type SignatoryInput struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	Order  int   `json:"order" validate:"required,gt=0"`
}

// UploadMetadata is sent as the JSON "metadata" part of an upload.
type UploadMetadata struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description,omitempty"`
	Signatories []SignatoryInput `json:"signatories" validate:"dive"`
}

// DocumentUpdate is the PATCH payload for a document.
type DocumentUpdate struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *DocumentStatus `json:"status,omitempty"`
}

// SignatureData is submitted when a signatory signs.
type SignatureData struct {
	UserID         int64     `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
	SignatureImage string    `json:"signatureImage"`
	PositionPage   int       `json:"positionPage"`
	PositionX      float64   `json:"positionX"`
	PositionY      float64   `json:"positionY"`
}
