package usecase

import (
	"context"
	"sync"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

type SessionUsecase interface {
	Connect(ctx context.Context, identity models.Identity) (*models.Session, error)
	// Disconnect always succeeds; transport failures are logged.
	Disconnect(ctx context.Context)
	Current() *models.Session
}

type sessionUsecase struct {
	backend ChatBackend

	mu      sync.RWMutex
	session *models.Session
}

func NewSessionUsecase(backend ChatBackend) SessionUsecase {
	return &sessionUsecase{
		backend: backend,
	}
}

func (u *sessionUsecase) Connect(ctx context.Context, identity models.Identity) (*models.Session, error) {
	if identity.UserID == "" {
		return nil, models.NewConnectError(models.NewAuthError("user id is required", nil))
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.UserID
	}

	session, err := u.backend.Connect(ctx, identity)
	if err != nil {
		return nil, models.NewConnectError(err)
	}

	u.mu.Lock()
	u.session = session
	u.mu.Unlock()

	log.Infow(ctx, "connected", "user_id", session.UserID, "session_id", session.ID)
	return session, nil
}

func (u *sessionUsecase) Disconnect(ctx context.Context) {
	u.mu.Lock()
	session := u.session
	u.session = nil
	u.mu.Unlock()

	if session == nil {
		return
	}
	if err := u.backend.Disconnect(ctx, session); err != nil {
		log.Warnw(ctx, "disconnect failed, session dropped locally",
			"user_id", session.UserID,
			"error", models.NewTransportError("disconnect", err))
		return
	}
	log.Infow(ctx, "disconnected", "user_id", session.UserID)
}

func (u *sessionUsecase) Current() *models.Session {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.session
}
