package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

// Recorder appends audit entries. Record never fails the caller: the write
// runs on a context detached from the request and errors are logged.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

const writeTimeout = 5 * time.Second

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "audit").Logger()}
}

func (s *Service) Record(ctx context.Context, ev Event) {
	e := &Entry{
		Action:   ev.Action,
		Resource: ev.Resource,
		Details:  ev.Details,
		Severity: ev.Severity,
	}
	if !e.Severity.Valid() {
		e.Severity = SeverityInfo
	}
	if ev.ResourceID != "" {
		id := ev.ResourceID
		e.ResourceID = &id
	}
	switch {
	case ev.ActorID != nil:
		e.UserID = ev.ActorID
	case !ev.Anonymous:
		if uid := auth.UserIDFromContext(ctx); uid != uuid.Nil {
			e.UserID = &uid
		}
	}
	if ci, ok := clientFromContext(ctx); ok {
		if ci.IP != "" {
			e.IPAddress = &ci.IP
		}
		if ci.UserAgent != "" {
			e.UserAgent = &ci.UserAgent
		}
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := s.repo.Create(wctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", e.Action).
			Str("resource", e.Resource).
			Msg("failed to write audit entry")
	}
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	return s.repo.List(ctx, f)
}

// Client metadata captured per request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

func WithClient(ctx context.Context, ci ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, ci)
}

func clientFromContext(ctx context.Context) (ClientInfo, bool) {
	ci, ok := ctx.Value(clientKey{}).(ClientInfo)
	return ci, ok
}

// CaptureClient stores the caller's address and user agent on the request
// context so entries recorded deeper in the stack carry them.
func CaptureClient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := WithClient(req.Context(), ClientInfo{IP: c.RealIP(), UserAgent: req.UserAgent()})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
