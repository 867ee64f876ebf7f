package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is append-only except for the read and edit flag flips.
type Message struct {
	gorm.Model
	ConversationID uint   `json:"conversationID" gorm:"not null;index"`
	SenderID       uint   `json:"senderID" gorm:"not null;index"`
	RecipientID    uint   `json:"recipientID" gorm:"not null;index"`
	Content        string `json:"content" gorm:"type:text"`

	IsRead bool       `json:"isRead" gorm:"not null;default:false;index"`
	ReadAt *time.Time `json:"readAt"`

	IsEdited bool       `json:"isEdited" gorm:"default:false"`
	EditedAt *time.Time `json:"editedAt"`
}
