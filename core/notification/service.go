package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("notification not found")
	ErrNotRecipient = errors.New("only the recipient can acknowledge a notification")
)

// Broker subjects
const (
	SubjectBroadcast  = "notifications.broadcast"
	subjectUserPrefix = "notifications.user."
)

// UserSubject returns the broker subject a user's notifications are published on.
func UserSubject(userID string) string {
	return subjectUserPrefix + userID
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs ...Urgent) ([]Urgent, error)
		QueryNotifications(ctx context.Context, filter *QueryFilter) ([]Urgent, error)
		GetNotificationByID(ctx context.Context, id string) (Urgent, error)
		SetNotificationAcknowledged(ctx context.Context, id string, at time.Time) (Urgent, error)
	}

	Service interface {
		// Send persists the notification (one row per recipient for broadcasts),
		// emails every recipient a copy and publishes it on the broker.
		Send(ctx context.Context, sender user.User, nu NewUrgent) ([]Urgent, error)
		Acknowledge(ctx context.Context, id, userID string) (Urgent, error)
		// QueryPending returns a user's unacknowledged notifications, newest first.
		QueryPending(ctx context.Context, userID string) ([]Urgent, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Urgent, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		broker  core.Broker
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	usrSvc user.Service,
	mailSvc core.EmailService,
	broker core.Broker,
	logger core.Logger,
) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		broker:  broker,
		logger:  logger,
	}
}

func (svc *service) Send(ctx context.Context, sender user.User, nu NewUrgent) ([]Urgent, error) {
	recipients, err := svc.resolveRecipients(ctx, sender, nu)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	notifs := make([]Urgent, 0, len(recipients))
	for _, rcpt := range recipients {
		notifs = append(notifs, Urgent{
			ID:          uuid.New().String(),
			SenderID:    sender.ID,
			SenderName:  sender.Name,
			RecipientID: rcpt.ID,
			Broadcast:   nu.Broadcast,
			Message:     nu.Message,
			CreatedAt:   now,
		})
	}

	notifs, err = svc.repo.CreateNotifications(ctx, notifs...)
	if err != nil {
		return nil, err
	}

	svc.emailCopies(sender, recipients, nu.Message)
	for _, n := range notifs {
		svc.publish(n)
	}
	return notifs, nil
}

func (svc *service) Acknowledge(ctx context.Context, id, userID string) (Urgent, error) {
	notif, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Urgent{}, err
	}
	if notif.RecipientID != userID {
		return Urgent{}, ErrNotRecipient
	}
	if notif.Acknowledged {
		return notif, nil
	}
	return svc.repo.SetNotificationAcknowledged(ctx, id, time.Now().UTC())
}

func (svc *service) QueryPending(ctx context.Context, userID string) ([]Urgent, error) {
	acked := false
	return svc.repo.QueryNotifications(ctx, &QueryFilter{RecipientID: userID, Acknowledged: &acked})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Urgent, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

// resolveRecipients expands a broadcast into every active user but the sender.
func (svc *service) resolveRecipients(ctx context.Context, sender user.User, nu NewUrgent) ([]user.User, error) {
	if !nu.Broadcast {
		rcpt, err := svc.usrSvc.GetByID(ctx, nu.RecipientID)
		if err != nil {
			return nil, err
		}
		return []user.User{rcpt}, nil
	}

	active := true
	users, err := svc.usrSvc.Query(ctx, &user.QueryFilter{IsActive: &active}, nil)
	if err != nil {
		return nil, err
	}
	recipients := make([]user.User, 0, len(users))
	for _, u := range users {
		if u.ID != sender.ID {
			recipients = append(recipients, u)
		}
	}
	return recipients, nil
}

func (svc *service) emailCopies(sender user.User, recipients []user.User, message string) {
	msgs := make([]*core.EmailMessage, 0, len(recipients))
	for _, rcpt := range recipients {
		if rcpt.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: rcpt.Name, Address: rcpt.Email}},
			Subject:      "Urgent notification from " + sender.Name,
			TemplateName: "urgent-notification",
			TemplateData: struct{ Sender, Message string }{Sender: sender.Name, Message: message},
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}

func (svc *service) publish(notif Urgent) {
	if svc.broker == nil {
		return
	}
	data, err := json.Marshal(notif)
	if err != nil {
		svc.logger.Error("marshalling notification", err)
		return
	}
	if err := svc.broker.Publish(UserSubject(notif.RecipientID), data); err != nil {
		svc.logger.Error("publishing notification", err)
	}
	if notif.Broadcast {
		if err := svc.broker.Publish(SubjectBroadcast, data); err != nil {
			svc.logger.Error("publishing broadcast notification", err)
		}
	}
}
