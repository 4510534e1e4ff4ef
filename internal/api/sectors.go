package api

import (
	"context"
	"net/http"

	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/validation"
)

const sectorsPath = "sectors"

// Sectors manages sectors.
type Sectors struct {
	client *Client
}

// NewSectors creates a Sectors service.
func NewSectors(client *Client) *Sectors {
	return &Sectors{client: client}
}

func (s *Sectors) List(ctx context.Context) ([]*models.Sector, error) {
	var sectors []*models.Sector
	if err := s.client.doJSON(ctx, http.MethodGet, sectorsPath, nil, nil, &sectors); err != nil {
		return nil, err
	}
	return sectors, nil
}

func (s *Sectors) Get(ctx context.Context, id int64) (*models.Sector, error) {
	var sector models.Sector
	if err := s.client.doJSON(ctx, http.MethodGet, idPath(sectorsPath, id), nil, nil, &sector); err != nil {
		return nil, err
	}
	return &sector, nil
}

func (s *Sectors) Create(ctx context.Context, in models.SectorInput) (*models.Sector, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var sector models.Sector
	if err := s.client.doJSON(ctx, http.MethodPost, sectorsPath, nil, in, &sector); err != nil {
		return nil, err
	}
	return &sector, nil
}

func (s *Sectors) Update(ctx context.Context, id int64, in models.SectorInput) (*models.Sector, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var sector models.Sector
	if err := s.client.doJSON(ctx, http.MethodPatch, idPath(sectorsPath, id), nil, in, &sector); err != nil {
		return nil, err
	}
	return &sector, nil
}

func (s *Sectors) Delete(ctx context.Context, id int64) error {
	return s.client.doJSON(ctx, http.MethodDelete, idPath(sectorsPath, id), nil, nil, nil)
}
