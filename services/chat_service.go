package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	errs "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IChatService interface {
	Connect(connID string, sink contract.EventSink)
	Disconnect(connID string)
	JoinRoom(connID string, roomID domain.RoomID)
	LeaveRoom(connID string, roomID domain.RoomID)
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error
	PostMedia(ctx context.Context, cmd domain.PostMediaCommand) (domain.Media, error)
	GetMessages(roomID domain.RoomID) ([]domain.Message, error)
	GetMedia(roomID domain.RoomID) ([]domain.Media, error)
}

// ChatService owns the persist-then-publish pipeline: a record is broadcast
// to its room only once its durable write has completed, and never on write
// failure.
type ChatService struct {
	log         *slog.Logger
	registry    contract.IRegistry
	messages    repositories.IMessageRepository
	media       repositories.IMediaRepository
	moderator   *moderation.Moderator
	sinkTimeout time.Duration
}

func NewChatService(
	log *slog.Logger,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	media repositories.IMediaRepository,
	moderator *moderation.Moderator,
	sinkTimeout time.Duration,
) *ChatService {
	return &ChatService{
		log:         log,
		registry:    registry,
		messages:    messages,
		media:       media,
		moderator:   moderator,
		sinkTimeout: sinkTimeout,
	}
}

// Connect registers the sink of a freshly accepted connection.
func (s *ChatService) Connect(connID string, sink contract.EventSink) {
	s.registry.Register(connID, sink)
}

// Disconnect removes the connection from every room it joined.
func (s *ChatService) Disconnect(connID string) {
	s.registry.Disconnect(connID)
}

func (s *ChatService) JoinRoom(connID string, roomID domain.RoomID) {
	s.registry.Join(connID, roomID)
}

func (s *ChatService) LeaveRoom(connID string, roomID domain.RoomID) {
	s.registry.Leave(connID, roomID)
}

// PostMessage validates, persists and then broadcasts a text message.
// Empty or whitespace-only content is dropped without a trace, matching the
// behavior clients already rely on. A persistence failure aborts before any
// broadcast.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		s.log.Debug("Dropping empty message", "room", cmd.ChatroomID, "sender", cmd.SenderID)
		return nil
	}
	if cmd.ChatroomID == "" || cmd.SenderID == "" {
		return fmt.Errorf("%w: chatroomId and senderId are required", errs.ErrValidation)
	}

	if s.moderator != nil {
		content = s.moderator.Censor(content)
	}

	message := domain.Message{
		ID:         uuid.New(),
		ChatroomID: cmd.ChatroomID,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.messages.StoreMessage(message); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	s.broadcast(ctx, event.MessageStored{Message: message})
	return nil
}

// PostMedia persists a media record for an already-written blob and
// broadcasts it. Both the HTTP upload pipeline and the send_media socket
// event funnel through here, so the persist-then-publish discipline lives in
// exactly one place.
func (s *ChatService) PostMedia(ctx context.Context, cmd domain.PostMediaCommand) (domain.Media, error) {
	if cmd.ChatroomID == "" || cmd.SenderID == "" || cmd.MediaURL == "" {
		return domain.Media{}, fmt.Errorf("%w: chatroomId, senderId and mediaUrl are required", errs.ErrValidation)
	}

	media := domain.Media{
		ID:         uuid.New(),
		ChatroomID: cmd.ChatroomID,
		SenderID:   cmd.SenderID,
		MediaURL:   cmd.MediaURL,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.media.StoreMedia(media); err != nil {
		return domain.Media{}, fmt.Errorf("failed to store media: %w", err)
	}

	s.broadcast(ctx, event.MediaStored{Media: media})
	return media, nil
}

func (s *ChatService) GetMessages(roomID domain.RoomID) ([]domain.Message, error) {
	return s.messages.GetMessages(roomID)
}

func (s *ChatService) GetMedia(roomID domain.RoomID) ([]domain.Media, error) {
	return s.media.GetMedia(roomID)
}

// broadcast fans the event out to the current member snapshot of its room.
// Delivery is best effort: a slow sink only loses its own copy, bounded by
// sinkTimeout, and can never fail the pipeline that produced the event.
func (s *ChatService) broadcast(ctx context.Context, evt event.DomainEvent) {
	sinks := s.registry.SinksForRoom(evt.RoomID())
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			s.log.Warn("Sink delivery failed", "room", evt.RoomID(), "error", err)
		}
		cancel()
	}
}
