// Package identities persists the auth provider's credentials.
package identities

import (
	"context"

	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.Identity, error)
}
