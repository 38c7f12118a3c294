package usecase

import (
	"context"
	"errors"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/util"
)

// MessageUsecase is the renderer-facing side of the sync engine: it adds
// permission checks and turns failures into notifications.
type MessageUsecase interface {
	List() []models.MessageView
	LoadMore(ctx context.Context) (int, error)
	Send(ctx context.Context, body string) (models.MessageView, error)
	Edit(ctx context.Context, id int64, body string) (models.MessageView, error)
	Delete(ctx context.Context, id int64) error
	CanEdit(msg models.Message) bool
	CanDelete(msg models.Message) bool
}

type messageUsecase struct {
	engine        SyncEngine
	session       SessionUsecase
	membership    MembershipUsecase
	notifications NotificationUsecase
}

func NewMessageUsecase(
	engine SyncEngine,
	session SessionUsecase,
	membership MembershipUsecase,
	notifications NotificationUsecase,
) MessageUsecase {
	return &messageUsecase{
		engine:        engine,
		session:       session,
		membership:    membership,
		notifications: notifications,
	}
}

func (u *messageUsecase) selfID() string {
	if s := u.session.Current(); s != nil {
		return s.UserID
	}
	return ""
}

func (u *messageUsecase) CanEdit(msg models.Message) bool {
	self := u.selfID()
	return self != "" && msg.SenderID == self
}

func (u *messageUsecase) CanDelete(msg models.Message) bool {
	self := u.selfID()
	if self == "" {
		return false
	}
	if msg.SenderID == self {
		return true
	}
	_, operators := u.membership.Current()
	return operators.Contains(self)
}

func (u *messageUsecase) view(msg models.Message) models.MessageView {
	return models.MessageView{
		Message:     msg,
		DisplayBody: msg.DisplayBody(),
		CanEdit:     u.CanEdit(msg),
		CanDelete:   u.CanDelete(msg),
	}
}

func (u *messageUsecase) List() []models.MessageView {
	return util.ConvertList(u.engine.Messages(), u.view)
}

// report turns err into a notification. A response dropped because the
// channel was detached in the meantime is not a failure the user can act on.
func (u *messageUsecase) report(err error) {
	if errors.Is(err, models.ErrDetached) {
		return
	}
	u.notifications.ReportError(err, "")
}

func (u *messageUsecase) LoadMore(ctx context.Context) (int, error) {
	n, err := u.engine.LoadMore(ctx)
	if errors.Is(err, models.ErrDetached) {
		return 0, nil
	}
	if err != nil {
		u.report(err)
		return 0, err
	}
	u.notifications.Dismiss(models.NotifyLoadMoreMessage)
	return n, nil
}

func (u *messageUsecase) Send(ctx context.Context, body string) (models.MessageView, error) {
	msg, err := u.engine.SendMessage(ctx, body)
	if err != nil {
		u.report(err)
		return models.MessageView{}, err
	}
	u.notifications.Dismiss(models.NotifySendMessage)
	return u.view(msg), nil
}

func (u *messageUsecase) Edit(ctx context.Context, id int64, body string) (models.MessageView, error) {
	current, ok := u.engine.Message(id)
	if !ok {
		err := models.NewSyncEditError(models.NewNotFoundError("message not loaded", nil))
		u.notifications.ReportError(err, "")
		return models.MessageView{}, err
	}
	if !u.CanEdit(current) {
		err := models.NewSyncEditError(models.ErrForbidden)
		u.notifications.ReportError(err, "")
		return models.MessageView{}, err
	}

	msg, err := u.engine.EditMessage(ctx, id, body)
	if err != nil {
		u.report(err)
		return models.MessageView{}, err
	}
	u.notifications.Dismiss(models.NotifyEditMessage)
	return u.view(msg), nil
}

func (u *messageUsecase) Delete(ctx context.Context, id int64) error {
	current, ok := u.engine.Message(id)
	if !ok {
		err := models.NewSyncDeleteError(models.NewNotFoundError("message not loaded", nil))
		u.notifications.ReportError(err, "")
		return err
	}
	if !u.CanDelete(current) {
		err := models.NewSyncDeleteError(models.ErrForbidden)
		u.notifications.ReportError(err, "")
		return err
	}

	if err := u.engine.DeleteMessage(ctx, id); err != nil {
		u.report(err)
		return err
	}
	u.notifications.Dismiss(models.NotifyDeleteMessage)
	return nil
}
