package usecase

import (
	"context"
	"sync"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

type MembershipUsecase interface {
	Join(ctx context.Context, ref models.ChannelRef) (*models.ChannelHandle, models.OperatorSet, error)
	// Leave is best effort and never fails.
	Leave(ctx context.Context)
	Current() (*models.ChannelHandle, models.OperatorSet)
}

type membershipUsecase struct {
	backend ChatBackend
	session SessionUsecase

	mu        sync.RWMutex
	handle    *models.ChannelHandle
	operators models.OperatorSet
}

func NewMembershipUsecase(backend ChatBackend, session SessionUsecase) MembershipUsecase {
	return &membershipUsecase{
		backend: backend,
		session: session,
	}
}

func (u *membershipUsecase) Join(ctx context.Context, ref models.ChannelRef) (*models.ChannelHandle, models.OperatorSet, error) {
	session := u.session.Current()
	if session == nil {
		return nil, nil, models.NewJoinError(models.ErrNotConnected)
	}
	if ref.URL == "" {
		return nil, nil, models.NewJoinError(models.ErrInvalidHandle)
	}

	handle, err := u.backend.JoinChannel(ctx, session, ref)
	if err != nil {
		return nil, nil, models.NewJoinError(err)
	}

	// operators only widen delete rights, so an empty set is the safe fallback
	operatorIDs, err := u.backend.ListOperators(ctx, handle)
	if err != nil {
		log.Warnw(ctx, "list operators failed", "channel_url", handle.URL, "error", err)
	}
	operators := models.NewOperatorSet(operatorIDs...)

	u.mu.Lock()
	u.handle = handle
	u.operators = operators
	u.mu.Unlock()

	log.Infow(ctx, "joined channel", "channel_url", handle.URL, "operators", len(operators))
	return handle, operators, nil
}

func (u *membershipUsecase) Leave(ctx context.Context) {
	u.mu.Lock()
	handle := u.handle
	u.handle = nil
	u.operators = nil
	u.mu.Unlock()

	if handle == nil {
		return
	}
	if err := u.backend.LeaveChannel(ctx, handle); err != nil {
		log.Warnw(ctx, "leave channel failed", "channel_url", handle.URL, "error", err)
	}
}

func (u *membershipUsecase) Current() (*models.ChannelHandle, models.OperatorSet) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.handle, u.operators
}
