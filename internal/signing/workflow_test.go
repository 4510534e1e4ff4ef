package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
)

func signatory(order int, userID int64, status models.SignatoryStatus) *models.DocumentSignatory {
	return &models.DocumentSignatory{ID: int64(order) * 10, UserID: userID, DocumentID: 1, Order: order, Status: status}
}

// sequentialDocument has user 5 signed, then 7 and 9 pending.
func sequentialDocument() *models.Document {
	return &models.Document{
		ID:               1,
		OriginalFilename: "contract.pdf",
		Status:           models.DocumentStatusSigning,
		Signatories: []*models.DocumentSignatory{
			signatory(1, 5, models.SignatoryStatusSigned),
			signatory(2, 7, models.SignatoryStatusPending),
			signatory(3, 9, models.SignatoryStatusPending),
		},
	}
}

func TestPending(t *testing.T) {
	sigs := []*models.DocumentSignatory{
		signatory(3, 9, models.SignatoryStatusPending),
		signatory(1, 5, models.SignatoryStatusSigned),
		signatory(2, 7, models.SignatoryStatusPending),
	}

	pending := Pending(sigs)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Order)
	assert.Equal(t, 3, pending[1].Order)
	assert.Equal(t, 3, sigs[0].Order, "input order is untouched")

	assert.Empty(t, Pending(nil))
}

func TestIsNextSignatory(t *testing.T) {
	user7 := &models.User{ID: 7}
	user9 := &models.User{ID: 9}

	t.Run("lowest pending order signs next", func(t *testing.T) {
		doc := sequentialDocument()
		assert.True(t, IsNextSignatory(doc, user7))
		assert.False(t, IsNextSignatory(doc, user9))
	})

	t.Run("requires signing status", func(t *testing.T) {
		for _, status := range []models.DocumentStatus{
			models.DocumentStatusDraft,
			models.DocumentStatusCompleted,
			models.DocumentStatusRejected,
			models.DocumentStatusCancelled,
		} {
			doc := sequentialDocument()
			doc.Status = status
			assert.False(t, IsNextSignatory(doc, user7), status)
		}
	})

	t.Run("missing inputs", func(t *testing.T) {
		assert.False(t, IsNextSignatory(nil, user7))
		assert.False(t, IsNextSignatory(sequentialDocument(), nil))
		assert.False(t, IsNextSignatory(&models.Document{Status: models.DocumentStatusSigning}, user7))
	})

	t.Run("nobody pending", func(t *testing.T) {
		doc := sequentialDocument()
		for _, sig := range doc.Signatories {
			sig.Status = models.SignatoryStatusSigned
		}
		assert.False(t, IsNextSignatory(doc, user7))
		assert.Nil(t, NextSignatory(doc))
	})
}

func TestDocumentSignedOrRejected(t *testing.T) {
	doc := sequentialDocument()
	doc.Signatories[2].Status = models.SignatoryStatusRejected

	assert.True(t, DocumentSignedOrRejected(doc, &models.User{ID: 5}))
	assert.False(t, DocumentSignedOrRejected(doc, &models.User{ID: 7}))
	assert.True(t, DocumentSignedOrRejected(doc, &models.User{ID: 9}))
	assert.False(t, DocumentSignedOrRejected(doc, &models.User{ID: 42}))
	assert.False(t, DocumentSignedOrRejected(doc, nil))
	assert.False(t, DocumentSignedOrRejected(nil, &models.User{ID: 5}))
}

func TestAllSigned(t *testing.T) {
	doc := sequentialDocument()
	assert.False(t, AllSigned(doc.Signatories))
	assert.False(t, AllSigned(nil))

	for _, sig := range doc.Signatories {
		sig.Status = models.SignatoryStatusSigned
	}
	assert.True(t, AllSigned(doc.Signatories))
}

func TestNextSignatoryLabel(t *testing.T) {
	assert.Equal(t, "N/A", NextSignatoryLabel(nil))

	sigs := sequentialDocument().Signatories
	assert.Equal(t, "User ID: 7", NextSignatoryLabel(sigs))

	sigs[1].Email = "bia@example.com"
	assert.Equal(t, "bia@example.com", NextSignatoryLabel(sigs))

	sigs[1].Name = "Bia"
	assert.Equal(t, "Bia", NextSignatoryLabel(sigs))

	for _, sig := range sigs {
		sig.Status = models.SignatoryStatusSigned
	}
	assert.Equal(t, "-", NextSignatoryLabel(sigs))
}

func TestAssignOrder(t *testing.T) {
	got, err := AssignOrder([]int64{9, 3, 7})
	require.NoError(t, err)
	assert.Equal(t, []models.SignatoryInput{
		{UserID: 9, Order: 1},
		{UserID: 3, Order: 2},
		{UserID: 7, Order: 3},
	}, got)

	_, err = AssignOrder([]int64{3, 3})
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = AssignOrder([]int64{0})
	assert.ErrorIs(t, err, apierr.ErrValidation)

	got, err = AssignOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWorkflow_IgnoresNullSignatories(t *testing.T) {
	doc := &models.Document{
		ID:     3,
		Status: models.DocumentStatusSigning,
		Signatories: []*models.DocumentSignatory{
			nil,
			signatory(1, 7, models.SignatoryStatusPending),
			nil,
		},
	}
	outsider := &models.User{ID: 99}
	signer := &models.User{ID: 7}

	assert.True(t, IsNextSignatory(doc, signer))
	assert.False(t, IsNextSignatory(doc, outsider))
	assert.False(t, DocumentSignedOrRejected(doc, outsider))
	assert.False(t, DocumentSignedOrRejected(doc, signer))
	assert.False(t, AllSigned(doc.Signatories))
	assert.Equal(t, "User ID: 7", NextSignatoryLabel(doc.Signatories))

	assert.False(t, mergeSignatory(doc, &models.DocumentSignatory{UserID: 99, Status: models.SignatoryStatusSigned}))
	require.True(t, mergeSignatory(doc, &models.DocumentSignatory{UserID: 7, Status: models.SignatoryStatusSigned}))
	assert.True(t, DocumentSignedOrRejected(doc, signer))
	assert.True(t, AllSigned(doc.Signatories))
}
