package usecase

import (
	"context"

	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

// SyncEngine keeps the local message list of the joined channel in step
// with the backend.
type SyncEngine interface {
	Attach(ctx context.Context, handle *models.ChannelHandle) error
	LoadMore(ctx context.Context) (int, error)
	OnLiveEvent(event models.LiveEvent)
	SendMessage(ctx context.Context, body string) (models.Message, error)
	EditMessage(ctx context.Context, id int64, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
	Detach()
	Messages() models.MessageList
	Message(id int64) (models.Message, bool)
	Close()
}

type syncEngine struct {
	backend       ChatBackend
	live          LiveSource
	broadcaster   Broadcaster
	notifications NotificationUsecase
	pageSize      int
	loop          *eventLoop
	log           *logger.Logger

	// fields below are only touched on loop
	generation     uint64
	handle         *models.ChannelHandle
	cursor         *models.Cursor
	messages       models.MessageList
	subscriptionID string
}

func NewSyncEngine(
	conf *config.Config,
	backend ChatBackend,
	live LiveSource,
	broadcaster Broadcaster,
	notifications NotificationUsecase,
) SyncEngine {
	e := newSyncEngine(backend, live, broadcaster, conf.Sync.PageSize)
	e.notifications = notifications
	return e
}

func newSyncEngine(backend ChatBackend, live LiveSource, broadcaster Broadcaster, pageSize int) *syncEngine {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &syncEngine{
		backend:     backend,
		live:        live,
		broadcaster: broadcaster,
		pageSize:    pageSize,
		loop:        newEventLoop(),
		log:         logger.MustNamed("sync"),
	}
}

// attachment is what a backend round trip needs from the loop state.
type attachment struct {
	generation uint64
	handle     *models.ChannelHandle
	cursor     models.Cursor
}

func (e *syncEngine) current() (attachment, bool) {
	var (
		a  attachment
		ok bool
	)
	e.loop.Do(func() {
		if e.handle == nil {
			return
		}
		ok = true
		a = attachment{generation: e.generation, handle: e.handle, cursor: *e.cursor}
	})
	return a, ok
}

func (e *syncEngine) Attach(ctx context.Context, handle *models.ChannelHandle) error {
	if !handle.Valid() {
		return models.NewSyncAttachError(models.ErrInvalidHandle)
	}

	var (
		gen    uint64
		cursor models.Cursor
		prev   string
	)
	e.loop.Do(func() {
		prev = e.resetOnLoop()
		e.generation++
		gen = e.generation
		e.handle = handle
		e.cursor = models.NewCursor(e.pageSize)
		cursor = *e.cursor
	})
	if prev != "" {
		e.live.Unsubscribe(prev)
	}

	page, err := e.backend.LoadMessages(ctx, handle, cursor)
	if err != nil {
		e.abandon(gen)
		return models.NewSyncAttachError(err)
	}

	stale := false
	e.loop.Do(func() {
		if e.generation != gen {
			stale = true
			return
		}
		e.cursor.Advance(page.NextToken)
		e.messages = mergeMessages(nil, page.Messages)
		e.publish(models.MutationReplace)
	})
	if stale {
		log.Debugw(ctx, "discard stale attach page", "channel_url", handle.URL)
		return models.NewSyncAttachError(models.ErrDetached)
	}

	handler := func(ev models.LiveEvent) {
		e.loop.Post(func() {
			if e.generation == gen {
				e.applyLive(ev)
			}
		})
	}
	subID, err := e.live.Subscribe(ctx, handle, handler)
	if err != nil {
		e.abandon(gen)
		return models.NewSyncAttachError(err)
	}

	e.loop.Do(func() {
		if e.generation != gen {
			stale = true
			return
		}
		e.subscriptionID = subID
	})
	if stale {
		e.live.Unsubscribe(subID)
		return models.NewSyncAttachError(models.ErrDetached)
	}

	log.Infow(ctx, "attached", "channel_url", handle.URL, "loaded", len(page.Messages))
	return nil
}

// abandon rolls back a failed attach if no newer attach or detach happened.
func (e *syncEngine) abandon(gen uint64) {
	e.loop.Do(func() {
		if e.generation != gen {
			return
		}
		e.resetOnLoop()
		e.generation++
	})
}

func (e *syncEngine) LoadMore(ctx context.Context) (int, error) {
	a, ok := e.current()
	if !ok {
		return 0, models.NewSyncLoadError(models.ErrNotAttached)
	}
	if a.cursor.Exhausted {
		return 0, nil
	}

	page, err := e.backend.LoadMessages(ctx, a.handle, a.cursor)
	if err != nil {
		return 0, models.NewSyncLoadError(err)
	}

	var (
		added int
		stale bool
	)
	e.loop.Do(func() {
		if e.generation != a.generation {
			stale = true
			return
		}
		before := len(e.messages)
		e.messages = mergeMessages(e.messages, page.Messages)
		added = len(e.messages) - before
		// a concurrent LoadMore may already have moved the cursor past this page
		if e.cursor.Token == a.cursor.Token {
			e.cursor.Advance(page.NextToken)
		}
		e.publish(models.MutationLoadMore)
	})
	if stale {
		log.Debugw(ctx, "discard stale page", "channel_url", a.handle.URL)
		return 0, models.NewSyncLoadError(models.ErrDetached)
	}
	return added, nil
}

func (e *syncEngine) OnLiveEvent(event models.LiveEvent) {
	e.loop.Post(func() {
		e.applyLive(event)
	})
}

func (e *syncEngine) applyLive(event models.LiveEvent) {
	if e.handle == nil {
		return
	}
	switch event.Type {
	case models.LiveEventAdded:
		if event.Message == nil || e.messages.IndexOf(event.Message.ID) >= 0 {
			return
		}
		e.messages = mergeMessages(e.messages, []models.Message{*event.Message})
		e.publish(models.MutationAppend)
	case models.LiveEventUpdated:
		if event.Message == nil {
			return
		}
		if list, ok := replaceMessage(e.messages, *event.Message); ok {
			e.messages = list
			e.publish(models.MutationUpdate)
		}
	case models.LiveEventDeleted:
		if list, ok := removeMessage(e.messages, event.MessageID); ok {
			e.messages = list
			e.publish(models.MutationDelete)
		}
	case models.LiveEventStreamLost:
		// the list stays usable, it just stops following the channel
		e.log.Warnw("live updates lost", "channel_url", e.handle.URL, "subscription_id", e.subscriptionID, "error", event.Err)
		e.subscriptionID = ""
		if e.notifications != nil {
			e.notifications.Add(models.Notification{
				ID:    models.NotifyLiveUpdates,
				Level: models.NotificationWarning,
				Text:  renderNotification(models.NotifyLiveUpdates, e.handle.Name, event.Err),
			})
		}
	default:
		e.log.Warnw("unknown live event", "type", event.Type, "message_id", event.MessageID)
	}
}

func (e *syncEngine) SendMessage(ctx context.Context, body string) (models.Message, error) {
	if body == "" {
		return models.Message{}, models.NewSyncSendError(models.ErrEmptyBody)
	}
	a, ok := e.current()
	if !ok {
		return models.Message{}, models.NewSyncSendError(models.ErrNotAttached)
	}

	msg, err := e.backend.SendMessage(ctx, a.handle, body)
	if err != nil {
		return models.Message{}, models.NewSyncSendError(err)
	}

	e.loop.Do(func() {
		if e.generation == a.generation {
			e.applyLive(models.LiveEvent{Type: models.LiveEventAdded, MessageID: msg.ID, Message: &msg})
		}
	})
	return msg, nil
}

func (e *syncEngine) EditMessage(ctx context.Context, id int64, body string) (models.Message, error) {
	if body == "" {
		return models.Message{}, models.NewSyncEditError(models.ErrEmptyBody)
	}
	a, ok := e.current()
	if !ok {
		return models.Message{}, models.NewSyncEditError(models.ErrNotAttached)
	}

	msg, err := e.backend.EditMessage(ctx, a.handle, id, body)
	if err != nil {
		return models.Message{}, models.NewSyncEditError(err)
	}

	e.loop.Do(func() {
		if e.generation == a.generation {
			e.applyLive(models.LiveEvent{Type: models.LiveEventUpdated, MessageID: msg.ID, Message: &msg})
		}
	})
	return msg, nil
}

func (e *syncEngine) DeleteMessage(ctx context.Context, id int64) error {
	a, ok := e.current()
	if !ok {
		return models.NewSyncDeleteError(models.ErrNotAttached)
	}

	if err := e.backend.DeleteMessage(ctx, a.handle, id); err != nil {
		return models.NewSyncDeleteError(err)
	}

	e.loop.Do(func() {
		if e.generation == a.generation {
			e.applyLive(models.LiveEvent{Type: models.LiveEventDeleted, MessageID: id})
		}
	})
	return nil
}

func (e *syncEngine) Detach() {
	var subID string
	e.loop.Do(func() {
		subID = e.resetOnLoop()
		e.generation++
	})
	if subID != "" {
		e.live.Unsubscribe(subID)
	}
}

// resetOnLoop clears the attachment and returns the live subscription the
// caller must cancel.
func (e *syncEngine) resetOnLoop() string {
	subID := e.subscriptionID
	wasAttached := e.handle != nil || len(e.messages) > 0
	e.handle = nil
	e.cursor = nil
	e.messages = nil
	e.subscriptionID = ""
	if wasAttached {
		e.publish(models.MutationClear)
	}
	return subID
}

func (e *syncEngine) Messages() models.MessageList {
	var out models.MessageList
	e.loop.Do(func() {
		out = e.messages.Clone()
	})
	return out
}

func (e *syncEngine) Message(id int64) (models.Message, bool) {
	var (
		msg models.Message
		ok  bool
	)
	e.loop.Do(func() {
		if idx := e.messages.IndexOf(id); idx >= 0 {
			msg, ok = e.messages[idx], true
		}
	})
	return msg, ok
}

func (e *syncEngine) Close() {
	e.Detach()
	e.loop.Stop()
}

func (e *syncEngine) publish(kind models.MutationKind) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.BroadcastList(models.ListUpdate{Kind: kind, Messages: e.messages.Clone()})
}
