package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

// ConnectionUsecase is the Disconnected / Connected / JoinedChannel state
// machine. Transitions are serialized. A failed connect stays Disconnected
// and a failed join stays Connected with the membership rolled back.
type ConnectionUsecase interface {
	State() models.ConnectionState
	Snapshot() models.ConnectionSnapshot
	RequestConnect(ctx context.Context, identity models.Identity) error
	RequestJoin(ctx context.Context, ref models.ChannelRef) error
	RequestLeave(ctx context.Context) error
	RequestDisconnect(ctx context.Context) error
	// Restore connects and joins the last used identity and channel.
	Restore(ctx context.Context) error
}

type connectionUsecase struct {
	session       SessionUsecase
	membership    MembershipUsecase
	engine        SyncEngine
	notifications NotificationUsecase
	settings      SettingsUsecase
	broadcaster   Broadcaster

	opMu  sync.Mutex
	mu    sync.RWMutex
	state models.ConnectionState
	// aborts is bumped by RequestDisconnect before it waits for opMu, so an
	// in-flight join can tell that its result must be dropped.
	aborts     atomic.Uint64
	cancelJoin context.CancelFunc
}

func NewConnectionUsecase(
	session SessionUsecase,
	membership MembershipUsecase,
	engine SyncEngine,
	notifications NotificationUsecase,
	settings SettingsUsecase,
	broadcaster Broadcaster,
) ConnectionUsecase {
	return &connectionUsecase{
		session:       session,
		membership:    membership,
		engine:        engine,
		notifications: notifications,
		settings:      settings,
		broadcaster:   broadcaster,
		state:         models.StateDisconnected,
	}
}

func (u *connectionUsecase) State() models.ConnectionState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

func (u *connectionUsecase) Snapshot() models.ConnectionSnapshot {
	snap := models.ConnectionSnapshot{State: u.State()}
	if s := u.session.Current(); s != nil {
		snap.Identity = &models.Identity{UserID: s.UserID, DisplayName: s.DisplayName}
	}
	if handle, operators := u.membership.Current(); handle != nil {
		snap.Channel = handle
		snap.Operators = operators.List()
	}
	return snap
}

func (u *connectionUsecase) setState(ctx context.Context, next models.ConnectionState, cause error) {
	u.mu.Lock()
	prev := u.state
	u.state = next
	u.mu.Unlock()

	ev := models.StateEvent{Old: prev, New: next}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if prev != next {
		log.Infow(ctx, "connection state changed", "old", prev.String(), "new", next.String())
	}
	if u.broadcaster != nil {
		u.broadcaster.BroadcastState(ev)
	}
}

func (u *connectionUsecase) RequestConnect(ctx context.Context, identity models.Identity) error {
	u.opMu.Lock()
	defer u.opMu.Unlock()

	if st := u.State(); st != models.StateDisconnected {
		return models.NewInvalidTransitionError(st, "connect")
	}

	if _, err := u.session.Connect(ctx, identity); err != nil {
		log.Warnw(ctx, "connect failed", "user_id", identity.UserID, "error", err)
		u.notifications.ReportError(err, identity.UserID)
		u.setState(ctx, models.StateDisconnected, err)
		return err
	}

	u.notifications.Dismiss(models.NotifyConnect)
	u.setState(ctx, models.StateConnected, nil)
	u.remember(ctx, func(ctx context.Context) error {
		return u.settings.SelectIdentity(ctx, identity.UserID)
	})
	return nil
}

func (u *connectionUsecase) RequestJoin(ctx context.Context, ref models.ChannelRef) error {
	u.opMu.Lock()
	defer u.opMu.Unlock()

	if st := u.State(); st != models.StateConnected {
		return models.NewInvalidTransitionError(st, "join a channel")
	}
	aborts := u.aborts.Load()
	ctx, cancel := context.WithCancel(ctx)
	u.setCancelJoin(cancel)
	defer func() {
		u.setCancelJoin(nil)
		cancel()
	}()

	handle, _, err := u.membership.Join(ctx, ref)
	if err != nil {
		if u.aborts.Load() != aborts {
			return u.dropJoin(ctx, ref, err)
		}
		u.notifications.ReportError(err, ref.URL)
		u.setState(ctx, models.StateConnected, err)
		return err
	}
	if u.aborts.Load() != aborts {
		return u.dropJoin(ctx, ref, models.NewJoinError(models.ErrDetached))
	}

	if err := u.engine.Attach(ctx, handle); err != nil {
		if errors.Is(err, models.ErrDetached) || u.aborts.Load() != aborts {
			return u.dropJoin(ctx, ref, err)
		}
		u.membership.Leave(ctx)
		u.notifications.ReportError(err, ref.URL)
		u.setState(ctx, models.StateConnected, err)
		return err
	}
	// disconnect arrived between Join and Attach, after its Detach ran
	if u.aborts.Load() != aborts {
		u.engine.Detach()
		return u.dropJoin(ctx, ref, models.NewSyncAttachError(models.ErrDetached))
	}

	u.notifications.Dismiss(models.NotifyJoinChannel)
	u.notifications.Dismiss(models.NotifyLoadMessages)
	u.notifications.Dismiss(models.NotifyLiveUpdates)
	u.setState(ctx, models.StateJoinedChannel, nil)
	u.remember(ctx, func(ctx context.Context) error {
		return u.settings.SelectChannel(ctx, handle.URL)
	})
	return nil
}

// dropJoin discards a join overtaken by a disconnect. Nothing is reported and
// the state stays Connected for the pending disconnect to take over.
func (u *connectionUsecase) dropJoin(ctx context.Context, ref models.ChannelRef, err error) error {
	ctx = context.WithoutCancel(ctx)
	log.Infow(ctx, "join discarded by disconnect", "channel_url", ref.URL)
	u.membership.Leave(ctx)
	return err
}

func (u *connectionUsecase) setCancelJoin(cancel context.CancelFunc) {
	u.mu.Lock()
	u.cancelJoin = cancel
	u.mu.Unlock()
}

// abortJoin cancels the round trips of an in-flight join.
func (u *connectionUsecase) abortJoin() {
	u.aborts.Add(1)
	u.mu.RLock()
	cancel := u.cancelJoin
	u.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (u *connectionUsecase) RequestLeave(ctx context.Context) error {
	u.opMu.Lock()
	defer u.opMu.Unlock()

	if st := u.State(); st != models.StateJoinedChannel {
		return models.NewInvalidTransitionError(st, "leave a channel")
	}
	u.engine.Detach()
	u.membership.Leave(ctx)
	u.setState(ctx, models.StateConnected, nil)
	return nil
}

func (u *connectionUsecase) RequestDisconnect(ctx context.Context) error {
	if st := u.State(); st == models.StateDisconnected {
		return models.NewInvalidTransitionError(st, "disconnect")
	}
	// runs before opMu so in-flight attach and load responses are dropped
	// instead of applied
	u.abortJoin()
	u.engine.Detach()

	u.opMu.Lock()
	defer u.opMu.Unlock()

	if st := u.State(); st == models.StateDisconnected {
		return models.NewInvalidTransitionError(st, "disconnect")
	}
	u.engine.Detach()
	u.membership.Leave(ctx)
	u.session.Disconnect(ctx)
	u.setState(ctx, models.StateDisconnected, nil)
	return nil
}

func (u *connectionUsecase) Restore(ctx context.Context) error {
	settings, err := u.settings.Load(ctx)
	if err != nil {
		return err
	}
	userID, channelURL := settings.UI.SelectedUserID, settings.UI.SelectedChannelURL
	if userID == "" || channelURL == "" {
		log.Infow(ctx, "nothing to restore")
		return nil
	}
	saved, ok := settings.FindIdentity(userID)
	if !ok {
		return models.NewConnectError(models.NewAuthError("saved identity "+userID+" not found", nil))
	}
	if err := u.RequestConnect(ctx, saved.Identity()); err != nil {
		return err
	}
	ref := models.ChannelRef{URL: channelURL}
	if ch, ok := settings.FindChannel(channelURL); ok {
		ref.Name = ch.Name
	}
	return u.RequestJoin(ctx, ref)
}

// remember persists a user driven selection. Failures only cost the next
// startup its restore, so they are logged.
func (u *connectionUsecase) remember(ctx context.Context, save func(context.Context) error) {
	if u.settings == nil {
		return
	}
	if err := save(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnw(ctx, "persist selection failed", "error", err)
	}
}
