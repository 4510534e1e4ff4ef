package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
)

func TestStruct_Credentials(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Struct(&models.Credentials{Email: "ana@example.com", Password: "secret1"}))
	})

	t.Run("bad email and short password", func(t *testing.T) {
		err := Struct(&models.Credentials{Email: "ana", Password: "123"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrValidation)
		assert.Contains(t, err.Error(), "email must be a valid email address")
		assert.Contains(t, err.Error(), "password must be at least 6 characters")
	})
}

func TestStruct_UserInput(t *testing.T) {
	t.Run("sector is optional", func(t *testing.T) {
		require.NoError(t, Struct(&models.UserInput{Name: "Ana", Email: "ana@example.com", Role: models.RoleUser}))
	})

	t.Run("unknown role", func(t *testing.T) {
		err := Struct(&models.UserInput{Name: "Ana", Email: "ana@example.com", Role: "root"})
		assert.ErrorIs(t, err, apierr.ErrValidation)
		assert.Contains(t, err.Error(), "role must be one of")
	})

	t.Run("non positive sector", func(t *testing.T) {
		zero := int64(0)
		err := Struct(&models.UserInput{Name: "Ana", Email: "ana@example.com", SectorID: &zero})
		assert.ErrorIs(t, err, apierr.ErrValidation)
		assert.Contains(t, err.Error(), "sectorId must be greater than 0")
	})
}

func TestStruct_UploadMetadataDivesIntoSignatories(t *testing.T) {
	err := Struct(&models.UploadMetadata{
		Title:       "Contract",
		Signatories: []models.SignatoryInput{{UserID: 1, Order: 1}, {UserID: 0, Order: 2}},
	})
	assert.ErrorIs(t, err, apierr.ErrValidation)
	assert.Contains(t, err.Error(), "userId is required")
}
