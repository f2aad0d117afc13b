// internal/members/service.go
package members

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the members service.
type Service interface {
	RegisterMember(ctx context.Context, email, name, password string) (*Member, error)
	Authenticate(ctx context.Context, email, password string) (*Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Repository persists members and their credentials.
type Repository interface {
	// Create stores the member, its credential and the registration event
	// atomically. A duplicate email returns ErrEmailTaken.
	Create(ctx context.Context, member *Member, credential *Credential) error
	ByEmail(ctx context.Context, email string) (*Member, *Credential, error)
	ByID(ctx context.Context, id uuid.UUID) (*Member, error)
}
