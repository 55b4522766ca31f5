package engine

import (
	"context"
	"strings"

	"stageline/internal/apperr"
	"stageline/internal/domain"
)

// The directory belongs to the surrounding CRUD layer. These writes exist so
// the CLI and tests can populate the records that card views project.

func (e Engine) UpsertActor(ctx context.Context, a domain.DirectoryActor) error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" {
		return apperr.Validation("actor id and name are required")
	}
	return apperr.Persistence("upsert actor", e.Repo.UpsertActor(ctx, a, e.now()))
}

func (e Engine) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("customer id and name are required")
	}
	return apperr.Persistence("upsert customer", e.Repo.UpsertCustomer(ctx, c, e.now()))
}

func (e Engine) UpsertVehicle(ctx context.Context, v domain.Vehicle) error {
	if strings.TrimSpace(v.ID) == "" || strings.TrimSpace(v.Plate) == "" {
		return apperr.Validation("vehicle id and plate are required")
	}
	return apperr.Persistence("upsert vehicle", e.Repo.UpsertVehicle(ctx, v, e.now()))
}
