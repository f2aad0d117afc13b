// internal/members/implementation.go
package members

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const minPasswordLength = 8

// service implements the Service interface.
type service struct {
	repo        Repository
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService creates a new members service. Registration and login share
// limiter; a nil limiter allows every request.
func NewService(repo Repository, limiter *rate.Limiter, logger *zap.Logger) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &service{
		repo:        repo,
		rateLimiter: limiter,
		logger:      logger,
		tracer:      otel.Tracer("barternexus/members"),
		now:         time.Now,
	}
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, email, name, password string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "members.register")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	// Step 1: Validate input
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", market.ErrInvalidArgument)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", market.ErrInvalidArgument, minPasswordLength)
	}

	// Step 2: Hash the password
	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Step 3: Persist member, credential and event together
	now := s.now().UTC()
	member := &Member{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Status:    StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	credential := &Credential{
		MemberID:     member.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}
	if err := s.repo.Create(ctx, member, credential); err != nil {
		return nil, fmt.Errorf("failed to register member: %w", err)
	}

	span.SetAttributes(attribute.String("member.id", member.ID.String()))
	s.logger.Info("Member registered", zap.String("member_id", member.ID.String()))
	return member, nil
}

// Authenticate verifies a member's credentials and returns the member if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "members.authenticate")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	member, credential, err := s.repo.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		s.logger.Warn("Failed login", zap.String("member_id", member.ID.String()))
		return nil, ErrInvalidCredentials
	}
	return member, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.repo.ByID(ctx, id)
}

// Exists reports whether id belongs to an active member.
func (s *service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	member, err := s.repo.ByID(ctx, id)
	if errors.Is(err, market.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.Status == StatusActive, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", fmt.Errorf("%w: invalid email %q", market.ErrInvalidArgument, email)
	}
	return strings.ToLower(addr.Address), nil
}
