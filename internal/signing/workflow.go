// Package signing derives the sequential signing state of a document and
// drives a single user's signing session.
//
// Derived state is never cached: every check is recomputed from the
// signatories, the current user and the document status.
package signing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
)

// Pending returns the PENDING signatories sorted by ascending order. The
// input is not modified.
func Pending(signatories []*models.DocumentSignatory) []*models.DocumentSignatory {
	pending := make([]*models.DocumentSignatory, 0, len(signatories))
	for _, sig := range signatories {
		if sig != nil && sig.Status == models.SignatoryStatusPending {
			pending = append(pending, sig)
		}
	}
	slices.SortStableFunc(pending, func(a, b *models.DocumentSignatory) int {
		return a.Order - b.Order
	})
	return pending
}

// NextSignatory returns the lowest order PENDING signatory, or nil.
func NextSignatory(doc *models.Document) *models.DocumentSignatory {
	if doc == nil {
		return nil
	}
	pending := Pending(doc.Signatories)
	if len(pending) == 0 {
		return nil
	}
	return pending[0]
}

// IsNextSignatory reports whether user may sign doc now.
func IsNextSignatory(doc *models.Document, user *models.User) bool {
	if doc == nil || user == nil || doc.Status != models.DocumentStatusSigning {
		return false
	}
	next := NextSignatory(doc)
	return next != nil && next.UserID == user.ID
}

// DocumentSignedOrRejected reports whether user has already acted on doc.
func DocumentSignedOrRejected(doc *models.Document, user *models.User) bool {
	if user == nil {
		return false
	}
	sig := doc.SignatoryFor(user.ID)
	if sig == nil {
		return false
	}
	return sig.Status == models.SignatoryStatusSigned || sig.Status == models.SignatoryStatusRejected
}

// AllSigned reports whether every signatory has signed. A list without
// signatories is not considered signed. Null entries are ignored.
func AllSigned(signatories []*models.DocumentSignatory) bool {
	seen := false
	for _, sig := range signatories {
		if sig == nil {
			continue
		}
		if sig.Status != models.SignatoryStatusSigned {
			return false
		}
		seen = true
	}
	return seen
}

// NextSignatoryLabel renders who signs next for listings: the name, else
// the email, else the user id. "N/A" when there are no signatories and "-"
// when nobody is pending.
func NextSignatoryLabel(signatories []*models.DocumentSignatory) string {
	if len(signatories) == 0 {
		return "N/A"
	}
	pending := Pending(signatories)
	if len(pending) == 0 {
		return "-"
	}
	next := pending[0]
	switch {
	case strings.TrimSpace(next.Name) != "":
		return next.Name
	case strings.TrimSpace(next.Email) != "":
		return next.Email
	default:
		return fmt.Sprintf("User ID: %d", next.UserID)
	}
}

// AssignOrder numbers signatories 1..n in the order they were added.
func AssignOrder(userIDs []int64) ([]models.SignatoryInput, error) {
	seen := make(map[int64]struct{}, len(userIDs))
	out := make([]models.SignatoryInput, 0, len(userIDs))
	for i, id := range userIDs {
		if id <= 0 {
			return nil, apierr.New(apierr.ErrValidation, fmt.Sprintf("invalid signatory user id %d", id))
		}
		if _, dup := seen[id]; dup {
			return nil, apierr.New(apierr.ErrValidation, fmt.Sprintf("user %d is already a signatory", id))
		}
		seen[id] = struct{}{}
		out = append(out, models.SignatoryInput{UserID: id, Order: i + 1})
	}
	return out, nil
}

// mergeSignatory overlays the fields the backend returned onto the local
// entry for the same user. It returns false if no entry matched.
func mergeSignatory(doc *models.Document, updated *models.DocumentSignatory) bool {
	local := doc.SignatoryFor(updated.UserID)
	if local == nil {
		return false
	}
	if updated.ID != 0 {
		local.ID = updated.ID
	}
	if updated.Order != 0 {
		local.Order = updated.Order
	}
	if updated.Status != "" {
		local.Status = updated.Status
	}
	if updated.SignedAt != nil {
		local.SignedAt = updated.SignedAt
	}
	if updated.RejectionReason != nil {
		local.RejectionReason = updated.RejectionReason
	}
	if updated.Name != "" {
		local.Name = updated.Name
	}
	if updated.Email != "" {
		local.Email = updated.Email
	}
	return true
}
