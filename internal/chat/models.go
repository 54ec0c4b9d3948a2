package chat

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

type Chatroom struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Transcript, ascending by send time when loaded via the repo.
	Messages []Message `gorm:"foreignKey:ChatroomID" json:"messages,omitempty"`
}

func (Chatroom) TableName() string { return "chatrooms" }

type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatroomID uint64    `gorm:"index;not null" json:"chatroom_id"`
	Sender     string    `gorm:"type:varchar(8);not null" json:"sender"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	SentAt     time.Time `gorm:"autoCreateTime" json:"sent_at"`
}

func (Message) TableName() string { return "messages" }

// Turn is one role/content element of a job's history snapshot.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
