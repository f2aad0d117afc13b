// internal/members/memory_repository.go
package members

import (
	"context"
	"fmt"
	"sync"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]Member
	byEmail     map[string]uuid.UUID
	credentials map[uuid.UUID]Credential
}

// NewMemoryRepository keeps members in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:        make(map[uuid.UUID]Member),
		byEmail:     make(map[string]uuid.UUID),
		credentials: make(map[uuid.UUID]Credential),
	}
}

func (r *memoryRepository) Create(ctx context.Context, member *Member, credential *Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[member.Email]; taken {
		return ErrEmailTaken
	}
	r.byID[member.ID] = *member
	r.byEmail[member.Email] = member.ID
	r.credentials[member.ID] = *credential
	return nil
}

func (r *memoryRepository) ByEmail(ctx context.Context, email string) (*Member, *Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil, fmt.Errorf("%w: member", market.ErrNotFound)
	}
	member := r.byID[id]
	credential := r.credentials[id]
	return &member, &credential, nil
}

func (r *memoryRepository) ByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	member, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: member %s", market.ErrNotFound, id)
	}
	return &member, nil
}
