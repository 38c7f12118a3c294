package usecase

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/tmplx"
)

type NotificationUsecase interface {
	// Add appends n unless a notification with the same id is showing.
	Add(n models.Notification) bool
	// ReportError turns an operation error into a notification keyed by the
	// operation. target names the identity or channel involved, if any.
	ReportError(err error, target string) models.Notification
	Dismiss(id string) bool
	Clear()
	List() []models.Notification
}

type notificationData struct {
	Target string
	Error  string
}

var notificationTemplates = map[string]*tmplx.Template{
	models.NotifyConnect: notificationTemplate(models.NotifyConnect,
		`Could not connect{{with .Target}} as {{quote .}}{{end}}. {{truncate 160 .Error}}`),
	models.NotifyJoinChannel: notificationTemplate(models.NotifyJoinChannel,
		`Could not join {{with .Target}}{{quote .}}{{else}}the channel{{end}}. {{truncate 160 .Error}}`),
	models.NotifyLoadMessages: notificationTemplate(models.NotifyLoadMessages,
		`Messages could not be loaded. {{truncate 160 .Error}}`),
	models.NotifyLoadMoreMessage: notificationTemplate(models.NotifyLoadMoreMessage,
		`Older messages could not be loaded. {{truncate 160 .Error}}`),
	models.NotifySendMessage: notificationTemplate(models.NotifySendMessage,
		`Message was not sent. {{truncate 160 .Error}}`),
	models.NotifyEditMessage: notificationTemplate(models.NotifyEditMessage,
		`Message could not be edited. {{truncate 160 .Error}}`),
	models.NotifyDeleteMessage: notificationTemplate(models.NotifyDeleteMessage,
		`Message could not be deleted. {{truncate 160 .Error}}`),
	models.NotifyLiveUpdates: notificationTemplate(models.NotifyLiveUpdates,
		`Live updates for {{with .Target}}{{quote .}}{{else}}the channel{{end}} stopped. Join again to resume. {{truncate 160 .Error}}`),
	models.NotifyInvalidAction: notificationTemplate(models.NotifyInvalidAction,
		`{{default "Something went wrong." .Error}}`),
}

var sampleNotification = notificationData{Target: "general", Error: "connection refused"}

func notificationTemplate(id, text string) *tmplx.Template {
	return tmplx.MustParse(id, text, tmplx.WithValidate(sampleNotification, tmplx.NotEmpty))
}

type notificationUsecase struct {
	broadcaster Broadcaster
	now         func() time.Time

	mu    sync.Mutex
	items []models.Notification
}

func NewNotificationUsecase(broadcaster Broadcaster) NotificationUsecase {
	return &notificationUsecase{
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

func (u *notificationUsecase) Add(n models.Notification) bool {
	u.mu.Lock()
	for _, item := range u.items {
		if item.ID == n.ID {
			u.mu.Unlock()
			return false
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = u.now()
	}
	u.items = append(u.items, n)
	list := u.snapshotLocked()
	u.mu.Unlock()

	u.broadcast(list)
	return true
}

func (u *notificationUsecase) ReportError(err error, target string) models.Notification {
	id := models.NotifyInvalidAction
	var opErr *models.Error
	if errors.As(err, &opErr) {
		id = opErr.NotificationID()
	}

	n := models.Notification{
		ID:    id,
		Level: models.NotificationError,
		Text:  renderNotification(id, target, err),
	}
	u.Add(n)
	return n
}

func renderNotification(id, target string, err error) string {
	tmpl, ok := notificationTemplates[id]
	if !ok {
		tmpl = notificationTemplates[models.NotifyInvalidAction]
	}
	data := notificationData{Target: target}
	if err != nil {
		data.Error = err.Error()
	}
	buf, renderErr := tmpl.Render(data)
	if renderErr != nil {
		return data.Error
	}
	return strings.TrimSpace(buf.String())
}

func (u *notificationUsecase) Dismiss(id string) bool {
	u.mu.Lock()
	idx := -1
	for i, item := range u.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		u.mu.Unlock()
		return false
	}
	u.items = append(u.items[:idx:idx], u.items[idx+1:]...)
	list := u.snapshotLocked()
	u.mu.Unlock()

	u.broadcast(list)
	return true
}

func (u *notificationUsecase) Clear() {
	u.mu.Lock()
	had := len(u.items) > 0
	u.items = nil
	u.mu.Unlock()

	if had {
		u.broadcast([]models.Notification{})
	}
}

func (u *notificationUsecase) List() []models.Notification {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshotLocked()
}

func (u *notificationUsecase) snapshotLocked() []models.Notification {
	out := make([]models.Notification, len(u.items))
	copy(out, u.items)
	return out
}

func (u *notificationUsecase) broadcast(list []models.Notification) {
	if u.broadcaster != nil {
		u.broadcaster.BroadcastNotifications(list)
	}
}
