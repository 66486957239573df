package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

type Service struct {
	repo    Repository
	limiter auth.LoginLimiter
	audit   audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, limiter auth.LoginLimiter, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		limiter: limiter,
		audit:   rec,
		logger:  logger.With().Str("component", "identity").Logger(),
	}
}

// Compared against when the email is unknown so both failure paths pay for
// one bcrypt comparison.
var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	auth.CheckPassword(dummyHash, password)
}

// Login verifies credentials for the client identified by clientKey. Every
// attempt is counted before the password is checked; a success clears the key.
func (s *Service) Login(ctx context.Context, clientKey string, req LoginRequest) (*User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Invalid("", "Email and password are required")
	}

	allowed, retryAfter, err := s.limiter.Hit(ctx, clientKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("login limiter unavailable, rejecting attempt")
		return nil, apperr.RateLimited(time.Minute)
	}
	if !allowed {
		return nil, apperr.RateLimited(retryAfter)
	}

	u, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		equalizeTiming(req.Password)
		return nil, s.loginFailed(ctx, email, "unknown email")
	case err != nil:
		return nil, err
	case !u.IsActive:
		equalizeTiming(req.Password)
		return nil, s.loginFailed(ctx, email, "inactive account")
	case !auth.CheckPassword(u.PasswordHash, req.Password):
		return nil, s.loginFailed(ctx, email, "wrong password")
	}

	if err := s.limiter.Reset(ctx, clientKey); err != nil {
		s.logger.Warn().Err(err).Msg("reset login limiter")
	}
	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now

	s.audit.Record(ctx, audit.Event{
		ActorID:  &u.ID,
		Action:   audit.ActionLogin,
		Resource: audit.ResourceAuth,
		Severity: audit.SeverityInfo,
	})
	return u, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) error {
	s.audit.Record(ctx, audit.Event{
		Anonymous: true,
		Action:    audit.ActionLoginFailed,
		Resource:  audit.ResourceAuth,
		Details:   map[string]any{"email": email, "reason": reason},
		Severity:  audit.SeverityWarning,
	})
	return apperr.ErrInvalidCredentials
}

// Logout records the logout; the handler destroys the session.
func (s *Service) Logout(ctx context.Context) {
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionLogout,
		Resource: audit.ResourceAuth,
		Severity: audit.SeverityInfo,
	})
}

// LookupPrincipal implements auth.PrincipalLookup.
func (s *Service) LookupPrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Principal(), nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]*User, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	u, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionCreateUser,
		Resource:   audit.ResourceUser,
		ResourceID: u.ID.String(),
		Details:    map[string]any{"email": u.Email, "role": u.Role},
		Severity:   audit.SeverityInfo,
	})
	return u, nil
}

func (s *Service) create(ctx context.Context, req CreateUserRequest) (*User, error) {
	role := auth.Role(req.Role)
	if role == "" {
		role = auth.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.Invalid("role", "must be one of: USER, REVIEWER, ADMIN")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
		Organization: req.Organization,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureUser creates the account unless the email is already registered.
// Used by the seed command; it writes no audit entry.
func (s *Service) EnsureUser(ctx context.Context, req CreateUserRequest) (*User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	u, err := s.create(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	roleChanged := false
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		changed = append(changed, "email")
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
		changed = append(changed, "name")
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		if !role.Valid() {
			return nil, apperr.Invalid("role", "must be one of: USER, REVIEWER, ADMIN")
		}
		roleChanged = role != u.Role
		u.Role = role
		changed = append(changed, "role")
	}
	if req.Organization != nil {
		u.Organization = req.Organization
		changed = append(changed, "organization")
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
		changed = append(changed, "isActive")
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
		changed = append(changed, "password")
	}
	if len(changed) == 0 {
		return nil, apperr.Invalid("", "no updatable fields supplied")
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	sev := audit.SeverityInfo
	if roleChanged {
		sev = audit.SeverityHigh
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionUpdateUser,
		Resource:   audit.ResourceUser,
		ResourceID: u.ID.String(),
		Details:    map[string]any{"fieldsChanged": changed, "role": u.Role},
		Severity:   sev,
	})
	return u, nil
}

// DeleteUser hard-deletes an account. Callers cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == auth.UserIDFromContext(ctx) {
		return apperr.Invalid("id", "Cannot delete your own account")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionDeleteUser,
		Resource:   audit.ResourceUser,
		ResourceID: id.String(),
		Details:    map[string]any{"email": u.Email, "role": u.Role},
		Severity:   audit.SeverityHigh,
	})
	return nil
}

// RecordTokenIssued audits an API token issuance.
func (s *Service) RecordTokenIssued(ctx context.Context, expiresAt time.Time) {
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionIssueToken,
		Resource: audit.ResourceAuth,
		Details:  map[string]any{"expiresAt": expiresAt.UTC().Format(time.RFC3339)},
		Severity: audit.SeverityInfo,
	})
}
