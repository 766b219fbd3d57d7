package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/chat"
	"linkup/domain/event"
	"linkup/errors"
	"linkup/moderation"
	"linkup/observability"
	"linkup/repositories"

	"github.com/google/uuid"
)

type IMessageService interface {
	Send(ctx context.Context, cmd chat.SendMessageCommand) (domain.Message, error)
	History(ctx context.Context, cmd chat.HistoryCommand) ([]domain.Message, error)
}

type MessageService struct {
	log         *slog.Logger
	users       repositories.IUserRepository
	messages    repositories.IMessageRepository
	images      contract.IImageService
	presence    contract.PresenceReader
	censor      contract.Censor
	monitoring  *observability.MonitoringManager
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	images contract.IImageService,
	presence contract.PresenceReader,
	censor contract.Censor,
	monitoring *observability.MonitoringManager,
	sinkTimeout time.Duration,
) *MessageService {
	return &MessageService{
		log:         log,
		users:       users,
		messages:    messages,
		images:      images,
		presence:    presence,
		censor:      censor,
		monitoring:  monitoring,
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.now = now
	return s
}

// Send validates, moderates and persists a message, then pushes it to the receiver
// if they are online. The receiver being offline is not an error: the message is
// returned to the sender either way and the receiver will find it in history.
func (s *MessageService) Send(ctx context.Context, cmd chat.SendMessageCommand) (domain.Message, error) {
	receiverID, ok := domain.ParseUserID(cmd.ReceiverID)
	if !ok {
		return domain.Message{}, errors.ErrInvalidIdentity
	}
	if !(domain.Message{Text: cmd.Text, Image: cmd.Image}).HasContent() {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	text := cmd.Text
	if strings.TrimSpace(text) == "" {
		text = ""
	}

	if _, err := s.users.GetUserByID(receiverID); err != nil {
		return domain.Message{}, err
	}

	if text != "" {
		sanitized, words := s.censor.Censor(text)
		if len(words) > 0 {
			s.monitoring.IncrCensoredMessages()
			s.log.Info("Message moderated",
				"sender_id", cmd.SenderID,
				"lang", moderation.DetectLanguage(text),
				"count", len(words))
		}
		text = sanitized
	}

	var imageURL string
	if cmd.Image != "" {
		url, err := s.images.Upload(ctx, cmd.Image, domain.ChatImagesFolder)
		if err != nil {
			return domain.Message{}, err
		}
		imageURL = url
	}

	message := domain.Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      imageURL,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("unable to store message: %w", err)
	}
	s.monitoring.IncrMessagesSent()

	s.deliver(ctx, message)
	return message, nil
}

// deliver pushes one newMessage event to the receiver's connection, at most once.
func (s *MessageService) deliver(ctx context.Context, message domain.Message) {
	session, online := s.presence.Lookup(message.ReceiverID)
	if !online {
		s.log.Debug("Receiver offline, message kept for history", "receiver_id", message.ReceiverID)
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()
	if err := session.Sink.Consume(sinkCtx, event.NewMessage{Message: message}); err != nil {
		s.monitoring.IncrDroppedEvents()
		s.log.Warn("New message not delivered",
			"receiver_id", message.ReceiverID,
			"connection_id", session.ConnectionID,
			"error", err)
		return
	}
	s.monitoring.IncrMessagesDelivered()
}

// History returns the whole conversation between the caller and another user, oldest first.
func (s *MessageService) History(_ context.Context, cmd chat.HistoryCommand) ([]domain.Message, error) {
	otherID, ok := domain.ParseUserID(cmd.OtherUserID)
	if !ok {
		return nil, errors.ErrInvalidIdentity
	}
	return s.messages.GetConversation(cmd.UserID, otherID)
}
