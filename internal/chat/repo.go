package chat

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateChatroom(ctx context.Context, room *Chatroom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// ListChatrooms returns the user's chatrooms, newest first, without messages.
func (r *Repo) ListChatrooms(ctx context.Context, userID uint64) ([]Chatroom, error) {
	var rooms []Chatroom
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetChatroomWithMessages fetches one chatroom scoped by owner, with its full
// transcript preloaded in ascending send order. A chatroom owned by someone
// else comes back as gorm.ErrRecordNotFound, never as a permission error.
func (r *Repo) GetChatroomWithMessages(ctx context.Context, chatroomID, userID uint64) (*Chatroom, error) {
	var room Chatroom
	if err := r.db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sent_at ASC, id ASC")
		}).
		Where("id = ? AND user_id = ?", chatroomID, userID).
		First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// AppendMessage always inserts a new row; callers own dedup.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkJobRunning transitions queued->running. Zero rows affected means the
// job was already picked up (duplicate delivery) or is terminal.
func (r *Repo) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, resultMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": resultMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, resultMsgID uint64, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"result_message_id": resultMsgID,
			"error":             errMsg,
		}).Error
}
