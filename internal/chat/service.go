package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sparkline-ai/chat-backend/internal/ai"
	"github.com/sparkline-ai/chat-backend/internal/common"
)

var ErrChatroomNotFound = errors.New("chatroom not found")

// FallbackReply is appended as the ai turn whenever the provider call fails,
// so a dispatched job always terminates the transcript with something.
const FallbackReply = "Sorry, I couldn't process your request right now. Please try again later."

// Publisher hands a job id to the broker. Fire-and-forget from the request
// path's point of view.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// ListCache caches per-user chatroom lists. Best-effort: errors and misses
// fall through to the database.
type ListCache interface {
	GetChatroomList(ctx context.Context, userID uint64, out *[]Chatroom) (bool, error)
	SetChatroomList(ctx context.Context, userID uint64, rooms []Chatroom) error
	InvalidateChatroomList(ctx context.Context, userID uint64) error
}

type Service struct {
	repo      *Repo
	publisher Publisher
	cache     ListCache
}

func NewService(repo *Repo, publisher Publisher, cache ListCache) *Service {
	return &Service{repo: repo, publisher: publisher, cache: cache}
}

func (s *Service) CreateChatroom(ctx context.Context, userID uint64, name string) (*Chatroom, error) {
	room := &Chatroom{Name: name, UserID: userID}
	if err := s.repo.CreateChatroom(ctx, room); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateChatroomList(ctx, userID)
	}
	return room, nil
}

func (s *Service) ListChatrooms(ctx context.Context, userID uint64) ([]Chatroom, error) {
	if s.cache != nil {
		var cached []Chatroom
		if hit, err := s.cache.GetChatroomList(ctx, userID, &cached); err == nil && hit {
			return cached, nil
		}
	}
	rooms, err := s.repo.ListChatrooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetChatroomList(ctx, userID, rooms)
	}
	return rooms, nil
}

func (s *Service) GetChatroom(ctx context.Context, userID, chatroomID uint64) (*Chatroom, error) {
	room, err := s.repo.GetChatroomWithMessages(ctx, chatroomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatroomNotFound
		}
		return nil, err
	}
	return room, nil
}

// SendMessage persists the user turn, freezes the history snapshot, creates
// the job row, and publishes the job id. The caller gets the persisted user
// message back immediately; the ai turn arrives out-of-band via the worker.
func (s *Service) SendMessage(ctx context.Context, userID, chatroomID uint64, content string) (*Message, error) {
	// ownership check + prior transcript in one fetch
	room, err := s.repo.GetChatroomWithMessages(ctx, chatroomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatroomNotFound
		}
		return nil, err
	}

	userMsg := &Message{
		ChatroomID: chatroomID,
		Sender:     SenderUser,
		Content:    content,
	}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	// snapshot: prior turns plus the message just persisted
	turns := make([]Turn, 0, len(room.Messages)+1)
	for _, m := range room.Messages {
		turns = append(turns, Turn{Role: m.Sender, Content: m.Content})
	}
	turns = append(turns, Turn{Role: SenderUser, Content: content})

	snapshot, err := json.Marshal(turns)
	if err != nil {
		return nil, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:         jobID,
		ChatroomID: chatroomID,
		UserID:     userID,
		Prompt:     content,
		History:    string(snapshot),
		Status:     JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return userMsg, nil
}

// ProcessJob runs one dispatched job to a terminal outcome. Called from the
// worker. A nil return means the delivery can be acked; an error means the
// append could not be persisted and the delivery should be nacked to the DLQ.
func (s *Service) ProcessJob(ctx context.Context, jobID string, provider ai.Provider) error {
	picked, err := s.repo.MarkJobRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !picked {
		// duplicate delivery or already terminal; appending again would
		// duplicate the ai turn
		return nil
	}

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(j.History), &turns); err != nil {
		return s.finishJob(ctx, j, "", err)
	}

	msgs := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Content})
	}

	reply, err := provider.Chat(ctx, msgs)
	return s.finishJob(ctx, j, reply, err)
}

// finishJob appends the ai turn (reply or fallback) and marks the job
// terminal. The provider error is absorbed here; only a store failure
// propagates.
func (s *Service) finishJob(ctx context.Context, j *Job, reply string, provErr error) error {
	content := reply
	if provErr != nil {
		content = FallbackReply
	}

	aiMsg := &Message{
		ChatroomID: j.ChatroomID,
		Sender:     SenderAI,
		Content:    content,
	}
	if err := s.repo.AppendMessage(ctx, aiMsg); err != nil {
		// job stays running; the broker's dead-letter topology owns retries
		return err
	}

	if provErr != nil {
		return s.repo.MarkJobFailed(ctx, j.ID, aiMsg.ID, provErr.Error())
	}
	return s.repo.MarkJobSucceeded(ctx, j.ID, aiMsg.ID)
}
