package model

import "github.com/google/uuid"

// Principal is the caller identity resolved from the access token.
type Principal struct {
	UserID uuid.UUID
	Email  string
}
