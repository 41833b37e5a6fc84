package models

import "time"

// Identity is a credential known to the auth provider. Its ID becomes the
// uuid of the matching usuarios row.
type Identity struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
