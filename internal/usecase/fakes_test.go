package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
)

func msg(id, createdAt int64) models.Message {
	return models.Message{
		ID:                id,
		CreatedAt:         createdAt,
		Body:              fmt.Sprintf("message %d", id),
		SenderID:          "alice",
		SenderDisplayName: "Alice",
		Kind:              models.MessageKindUser,
	}
}

func ids(list []models.Message) []int64 {
	out := make([]int64, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

type fakeBackend struct {
	mu sync.Mutex

	pages      map[string]models.Page
	operators  []string
	connectErr error
	joinErr    error
	opsErr     error
	loadErr    error
	sendErr    error
	editErr    error
	deleteErr  error
	disconnErr error

	// when loadGate is set LoadMessages signals loadStarted and blocks
	// until loadGate is closed or ctx is done. With ignoreCancel it waits
	// for the gate like a transport that does not watch ctx.
	loadGate     chan struct{}
	loadStarted  chan struct{}
	ignoreCancel bool

	nextID int64
	calls  map[string]int
	left   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pages:  map[string]models.Page{},
		calls:  map[string]int{},
		nextID: 1000,
	}
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[name]++
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) Connect(_ context.Context, identity models.Identity) (*models.Session, error) {
	b.record("connect")
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	return &models.Session{ID: "s-" + identity.UserID, UserID: identity.UserID, DisplayName: identity.DisplayName}, nil
}

func (b *fakeBackend) Disconnect(context.Context, *models.Session) error {
	b.record("disconnect")
	return b.disconnErr
}

func (b *fakeBackend) JoinChannel(_ context.Context, session *models.Session, ref models.ChannelRef) (*models.ChannelHandle, error) {
	b.record("join")
	if b.joinErr != nil {
		return nil, b.joinErr
	}
	return &models.ChannelHandle{URL: ref.URL, Name: ref.Name, SessionID: session.ID}, nil
}

func (b *fakeBackend) LeaveChannel(_ context.Context, handle *models.ChannelHandle) error {
	b.record("leave")
	b.mu.Lock()
	b.left = append(b.left, handle.URL)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) ListOperators(context.Context, *models.ChannelHandle) ([]string, error) {
	b.record("operators")
	return b.operators, b.opsErr
}

func (b *fakeBackend) LoadMessages(ctx context.Context, _ *models.ChannelHandle, cursor models.Cursor) (models.Page, error) {
	b.record("load")
	if b.loadGate != nil {
		if b.loadStarted != nil {
			b.loadStarted <- struct{}{}
		}
		if b.ignoreCancel {
			<-b.loadGate
		} else {
			select {
			case <-b.loadGate:
			case <-ctx.Done():
				return models.Page{}, ctx.Err()
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return models.Page{}, b.loadErr
	}
	return b.pages[cursor.Token], nil
}

func (b *fakeBackend) SendMessage(_ context.Context, _ *models.ChannelHandle, body string) (models.Message, error) {
	b.record("send")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return models.Message{}, b.sendErr
	}
	b.nextID++
	return models.Message{ID: b.nextID, CreatedAt: 10_000 + b.nextID, Body: body, SenderID: "alice", Kind: models.MessageKindUser}, nil
}

func (b *fakeBackend) EditMessage(_ context.Context, _ *models.ChannelHandle, id int64, body string) (models.Message, error) {
	b.record("edit")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editErr != nil {
		return models.Message{}, b.editErr
	}
	m := msg(id, 0)
	for _, page := range b.pages {
		for _, stored := range page.Messages {
			if stored.ID == id {
				m = stored
			}
		}
	}
	m.Body = body
	return m, nil
}

func (b *fakeBackend) DeleteMessage(context.Context, *models.ChannelHandle, int64) error {
	b.record("delete")
	return b.deleteErr
}

type fakeLive struct {
	mu           sync.Mutex
	next         int
	active       map[string]models.LiveHandler
	all          map[string]models.LiveHandler
	unsubscribed []string
	subscribeErr error
}

func newFakeLive() *fakeLive {
	return &fakeLive{
		active: map[string]models.LiveHandler{},
		all:    map[string]models.LiveHandler{},
	}
}

func (l *fakeLive) Subscribe(_ context.Context, _ *models.ChannelHandle, handler models.LiveHandler) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subscribeErr != nil {
		return "", l.subscribeErr
	}
	l.next++
	id := fmt.Sprintf("sub-%d", l.next)
	l.active[id] = handler
	l.all[id] = handler
	return id, nil
}

func (l *fakeLive) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
	l.unsubscribed = append(l.unsubscribed, id)
}

// push delivers ev through a subscription handler, even one already
// unsubscribed, the way a slow transport would.
func (l *fakeLive) push(id string, ev models.LiveEvent) {
	l.mu.Lock()
	h := l.all[id]
	l.mu.Unlock()
	h(ev)
}

func (l *fakeLive) activeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

type fakeBroadcaster struct {
	mu            sync.Mutex
	lists         []models.ListUpdate
	states        []models.StateEvent
	notifications [][]models.Notification
}

func (b *fakeBroadcaster) BroadcastList(update models.ListUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists = append(b.lists, update)
}

func (b *fakeBroadcaster) BroadcastState(event models.StateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, event)
}

func (b *fakeBroadcaster) BroadcastNotifications(list []models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, list)
}

func (b *fakeBroadcaster) kinds() []models.MutationKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.MutationKind, len(b.lists))
	for i, l := range b.lists {
		out[i] = l.Kind
	}
	return out
}

type fakeSettingsRepo struct {
	mu         sync.Mutex
	identities []models.SavedIdentity
	channels   []models.SavedChannel
	ui         *models.UIState
	err        error
}

func (r *fakeSettingsRepo) ListIdentities(context.Context) ([]models.SavedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SavedIdentity(nil), r.identities...), r.err
}

func (r *fakeSettingsRepo) ReplaceIdentities(_ context.Context, identities []models.SavedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = append([]models.SavedIdentity(nil), identities...)
	return r.err
}

func (r *fakeSettingsRepo) ListChannels(context.Context) ([]models.SavedChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SavedChannel(nil), r.channels...), r.err
}

func (r *fakeSettingsRepo) ReplaceChannels(_ context.Context, channels []models.SavedChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append([]models.SavedChannel(nil), channels...)
	return r.err
}

func (r *fakeSettingsRepo) GetUIState(context.Context) (models.UIState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.UIState{}, r.err
	}
	if r.ui == nil {
		return models.UIState{}, models.ErrNotFound
	}
	return *r.ui, nil
}

func (r *fakeSettingsRepo) SaveUIState(_ context.Context, state models.UIState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ui = &state
	return nil
}

func (r *fakeSettingsRepo) state() models.UIState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ui == nil {
		return models.UIState{}
	}
	return *r.ui
}
