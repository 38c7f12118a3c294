package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var general = &models.ChannelHandle{URL: "general", Name: "General"}

type engineFixture struct {
	backend     *fakeBackend
	live        *fakeLive
	broadcaster *fakeBroadcaster
	engine      *syncEngine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		backend:     newFakeBackend(),
		live:        newFakeLive(),
		broadcaster: &fakeBroadcaster{},
	}
	f.engine = newSyncEngine(f.backend, f.live, f.broadcaster, 2)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *engineFixture) attach(t *testing.T, first models.Page) {
	t.Helper()
	f.backend.pages[""] = first
	require.NoError(t, f.engine.Attach(context.Background(), general))
}

func TestSyncEngineScenario(t *testing.T) {
	f := newEngineFixture(t)
	f.backend.pages["p2"] = models.Page{Messages: []models.Message{msg(3, 50), msg(4, 80)}}
	f.attach(t, models.Page{Messages: []models.Message{msg(5, 100), msg(6, 200)}, NextToken: "p2"})

	dup := msg(6, 200)
	f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventAdded, MessageID: 6, Message: &dup})
	assert.Equal(t, []int64{5, 6}, ids(f.engine.Messages()))

	f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventDeleted, MessageID: 5})
	assert.Equal(t, []int64{6}, ids(f.engine.Messages()))

	added, err := f.engine.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []int64{3, 4, 6}, ids(f.engine.Messages()))

	assert.Equal(t, []models.MutationKind{
		models.MutationReplace,
		models.MutationDelete,
		models.MutationLoadMore,
	}, f.broadcaster.kinds())
}

func TestSyncEngineLiveEvents(t *testing.T) {
	f := newEngineFixture(t)
	f.attach(t, models.Page{Messages: []models.Message{msg(1, 10), msg(2, 20)}})

	t.Run("added through subscription", func(t *testing.T) {
		m := msg(3, 30)
		f.live.push("sub-1", models.LiveEvent{Type: models.LiveEventAdded, MessageID: 3, Message: &m})
		assert.Equal(t, []int64{1, 2, 3}, ids(f.engine.Messages()))
	})

	t.Run("duplicate added is idempotent", func(t *testing.T) {
		before := f.engine.Messages()
		m := msg(3, 30)
		m.Body = "redelivered"
		f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventAdded, MessageID: 3, Message: &m})
		assert.Equal(t, before, f.engine.Messages())
	})

	t.Run("updated replaces in place", func(t *testing.T) {
		m := msg(2, 20)
		m.Body = "edited elsewhere"
		f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventUpdated, MessageID: 2, Message: &m})
		got, ok := f.engine.Message(2)
		require.True(t, ok)
		assert.Equal(t, "edited elsewhere", got.Body)
	})

	t.Run("absent ids are no-ops", func(t *testing.T) {
		before := f.engine.Messages()
		m := msg(42, 420)
		f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventUpdated, MessageID: 42, Message: &m})
		f.engine.OnLiveEvent(models.LiveEvent{Type: models.LiveEventDeleted, MessageID: 42})
		assert.Equal(t, before, f.engine.Messages())
	})
}

func TestSyncEngineLoadMore(t *testing.T) {
	t.Run("never shrinks or reorders", func(t *testing.T) {
		f := newEngineFixture(t)
		f.backend.pages["p2"] = models.Page{Messages: []models.Message{msg(3, 30), msg(4, 40)}, NextToken: "p3"}
		f.backend.pages["p3"] = models.Page{Messages: []models.Message{msg(1, 10), msg(4, 40)}}
		f.attach(t, models.Page{Messages: []models.Message{msg(4, 40), msg(5, 50)}, NextToken: "p2"})

		prev := f.engine.Messages()
		for i := 0; i < 2; i++ {
			_, err := f.engine.LoadMore(context.Background())
			require.NoError(t, err)
			next := f.engine.Messages()
			assert.GreaterOrEqual(t, len(next), len(prev))
			assert.Subset(t, ids(next), ids(prev))
			prev = next
		}
		assert.Equal(t, []int64{1, 3, 4, 5}, ids(prev))
	})

	t.Run("returns only new messages", func(t *testing.T) {
		f := newEngineFixture(t)
		f.backend.pages["p2"] = models.Page{Messages: []models.Message{msg(4, 40), msg(5, 50)}}
		f.attach(t, models.Page{Messages: []models.Message{msg(5, 50), msg(6, 60)}, NextToken: "p2"})

		added, err := f.engine.LoadMore(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, added)
	})

	t.Run("exhausted cursor skips the backend", func(t *testing.T) {
		f := newEngineFixture(t)
		f.attach(t, models.Page{Messages: []models.Message{msg(1, 10)}})

		added, err := f.engine.LoadMore(context.Background())
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, 1, f.backend.count("load"))
	})

	t.Run("before attach", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.LoadMore(context.Background())
		assert.ErrorIs(t, err, models.ErrSyncLoad)
		assert.Zero(t, f.backend.count("load"))
	})

	t.Run("backend failure keeps list", func(t *testing.T) {
		f := newEngineFixture(t)
		f.attach(t, models.Page{Messages: []models.Message{msg(5, 50)}, NextToken: "p2"})
		f.backend.loadErr = models.NewTransportError("timeout", nil)

		_, err := f.engine.LoadMore(context.Background())
		assert.ErrorIs(t, err, models.ErrSyncLoad)
		assert.ErrorIs(t, err, models.ErrTransport)
		assert.Equal(t, []int64{5}, ids(f.engine.Messages()))
	})
}

func TestSyncEngineDetachDuringLoadMore(t *testing.T) {
	f := newEngineFixture(t)
	f.backend.pages["p2"] = models.Page{Messages: []models.Message{msg(1, 10)}}
	f.attach(t, models.Page{Messages: []models.Message{msg(5, 50)}, NextToken: "p2"})

	f.backend.loadGate = make(chan struct{})
	f.backend.loadStarted = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := f.engine.LoadMore(context.Background())
		errc <- err
	}()

	select {
	case <-f.backend.loadStarted:
	case <-time.After(time.Second):
		t.Fatal("load more did not reach the backend")
	}
	f.engine.Detach()
	close(f.backend.loadGate)

	err := <-errc
	assert.ErrorIs(t, err, models.ErrSyncLoad)
	assert.Empty(t, f.engine.Messages())
}

func TestSyncEngineDetach(t *testing.T) {
	f := newEngineFixture(t)
	f.attach(t, models.Page{Messages: []models.Message{msg(1, 10)}})

	f.engine.Detach()
	f.engine.Detach()
	assert.Empty(t, f.engine.Messages())
	assert.Zero(t, f.live.activeCount())
	assert.Equal(t, []string{"sub-1"}, f.live.unsubscribed)

	t.Run("late live event from old subscription is dropped", func(t *testing.T) {
		m := msg(2, 20)
		f.live.push("sub-1", models.LiveEvent{Type: models.LiveEventAdded, MessageID: 2, Message: &m})
		assert.Empty(t, f.engine.Messages())
	})

	t.Run("reattach starts fresh", func(t *testing.T) {
		f.backend.pages[""] = models.Page{Messages: []models.Message{msg(7, 70)}}
		require.NoError(t, f.engine.Attach(context.Background(), general))
		assert.Equal(t, []int64{7}, ids(f.engine.Messages()))

		m := msg(8, 80)
		f.live.push("sub-1", models.LiveEvent{Type: models.LiveEventAdded, MessageID: 8, Message: &m})
		assert.Equal(t, []int64{7}, ids(f.engine.Messages()))
	})
}

func TestSyncEngineAttachFailure(t *testing.T) {
	t.Run("invalid handle", func(t *testing.T) {
		f := newEngineFixture(t)
		err := f.engine.Attach(context.Background(), &models.ChannelHandle{})
		assert.ErrorIs(t, err, models.ErrSyncAttach)
		assert.Zero(t, f.backend.count("load"))
	})

	t.Run("load fails", func(t *testing.T) {
		f := newEngineFixture(t)
		f.backend.loadErr = errors.New("boom")

		err := f.engine.Attach(context.Background(), general)
		assert.ErrorIs(t, err, models.ErrSyncAttach)
		assert.Empty(t, f.engine.Messages())
		assert.Zero(t, f.live.activeCount())

		_, err = f.engine.SendMessage(context.Background(), "hello")
		assert.ErrorIs(t, err, models.ErrSyncSend)
	})

	t.Run("subscribe fails", func(t *testing.T) {
		f := newEngineFixture(t)
		f.backend.pages[""] = models.Page{Messages: []models.Message{msg(1, 10)}}
		f.live.subscribeErr = errors.New("socket closed")

		err := f.engine.Attach(context.Background(), general)
		assert.ErrorIs(t, err, models.ErrSyncAttach)
		assert.Empty(t, f.engine.Messages())
	})
}

func TestSyncEngineSend(t *testing.T) {
	t.Run("detached", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.SendMessage(context.Background(), "hello")
		assert.ErrorIs(t, err, models.ErrSyncSend)
		assert.ErrorIs(t, err, models.ErrNotAttached)
		assert.Zero(t, f.backend.count("send"))
		assert.Empty(t, f.engine.Messages())
	})

	t.Run("empty body", func(t *testing.T) {
		f := newEngineFixture(t)
		f.attach(t, models.Page{})
		_, err := f.engine.SendMessage(context.Background(), "")
		assert.ErrorIs(t, err, models.ErrSyncSend)
		assert.Zero(t, f.backend.count("send"))
	})

	t.Run("confirmed message is merged once", func(t *testing.T) {
		f := newEngineFixture(t)
		f.attach(t, models.Page{Messages: []models.Message{msg(1, 10)}})

		sent, err := f.engine.SendMessage(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", sent.Body)

		// the backend echoes the send over the live channel too
		f.live.push("sub-1", models.LiveEvent{Type: models.LiveEventAdded, MessageID: sent.ID, Message: &sent})
		assert.Equal(t, []int64{1, sent.ID}, ids(f.engine.Messages()))
	})

	t.Run("failure adds nothing", func(t *testing.T) {
		f := newEngineFixture(t)
		f.attach(t, models.Page{Messages: []models.Message{msg(1, 10)}})
		f.backend.sendErr = models.NewTransportError("timeout", nil)

		_, err := f.engine.SendMessage(context.Background(), "hello")
		assert.ErrorIs(t, err, models.ErrSyncSend)
		assert.Equal(t, []int64{1}, ids(f.engine.Messages()))
	})
}

func TestSyncEngineEdit(t *testing.T) {
	f := newEngineFixture(t)
	f.attach(t, models.Page{Messages: []models.Message{msg(5, 100), msg(6, 200), msg(7, 300)}})

	edited, err := f.engine.EditMessage(context.Background(), 6, "fixed typo")
	require.NoError(t, err)
	assert.Equal(t, int64(6), edited.ID)

	got, ok := f.engine.Message(6)
	require.True(t, ok)
	assert.Equal(t, "fixed typo", got.Body)
	assert.Equal(t, int64(200), got.CreatedAt)
	assert.Equal(t, []int64{5, 6, 7}, ids(f.engine.Messages()))
	assert.Equal(t, models.MutationUpdate, f.broadcaster.kinds()[len(f.broadcaster.kinds())-1])

	t.Run("failure leaves list unchanged", func(t *testing.T) {
		before := f.engine.Messages()
		f.backend.editErr = errors.New("boom")
		_, err := f.engine.EditMessage(context.Background(), 5, "nope")
		assert.ErrorIs(t, err, models.ErrSyncEdit)
		assert.Equal(t, before, f.engine.Messages())
	})
}

func TestSyncEngineDelete(t *testing.T) {
	f := newEngineFixture(t)
	f.attach(t, models.Page{Messages: []models.Message{msg(1, 10), msg(2, 20)}})

	f.backend.deleteErr = errors.New("boom")
	err := f.engine.DeleteMessage(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrSyncDelete)
	assert.Equal(t, []int64{1, 2}, ids(f.engine.Messages()))

	f.backend.deleteErr = nil
	require.NoError(t, f.engine.DeleteMessage(context.Background(), 1))
	assert.Equal(t, []int64{2}, ids(f.engine.Messages()))
}
