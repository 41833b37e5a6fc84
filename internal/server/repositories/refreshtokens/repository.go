// Package refreshtokens stores the opaque refresh tokens issued by the auth
// provider alongside its short-lived access tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/varejo/internal/server/models"
)

// Repository issues, looks up and revokes refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired purges tokens past their expiry and reports how many went.
	DeleteExpired(ctx context.Context) (int64, error)
}
