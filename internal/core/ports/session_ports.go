package ports

import "github.com/vncsmyrnk/timedpolls/internal/core/domain"

// SessionService owns the per-author creation sessions. Returned sessions are
// snapshots; mutate them through the service.
type SessionService interface {
	Start(authorID string) (*domain.CreationSession, error)
	StartEditing(authorID string, poll *domain.Poll) (*domain.CreationSession, error)
	Get(authorID string) (*domain.CreationSession, error)
	SetField(authorID string, field domain.Field, value string) (*domain.CreationSession, error)
	Await(authorID string, field domain.Field) (*domain.CreationSession, error)
	// FillAwaited reports false when the author has no session or it awaits nothing.
	FillAwaited(authorID, raw string) (*domain.CreationSession, bool, error)
	End(authorID string)
	SaveDraft(authorID string) (domain.Draft, error)
	LoadDraft(authorID, code string) (*domain.CreationSession, error)
	Shutdown()
}
