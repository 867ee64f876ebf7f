package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrSelfConversation = errors.New("conversation requires two distinct participants")

// Conversation is the denormalized summary of a direct-message thread.
// Participants are stored in canonical order (smaller id first) so each
// unordered pair maps to exactly one row; the unique index enforces it.
// Unread counters are maintained incrementally by services.SendMessage and
// services.MarkMessagesRead, never recomputed on read.
type Conversation struct {
	gorm.Model
	Participant1ID uint `json:"participant1ID" gorm:"column:participant_1_id;not null;uniqueIndex:idx_conversation_pair"`
	Participant2ID uint `json:"participant2ID" gorm:"column:participant_2_id;not null;uniqueIndex:idx_conversation_pair"`
	Participant1   User `json:"participant1" gorm:"foreignKey:Participant1ID;references:ID"`
	Participant2   User `json:"participant2" gorm:"foreignKey:Participant2ID;references:ID"`

	// Weak reference to the newest message, not an ownership relation.
	LastMessageID *uint      `json:"lastMessageID" gorm:"column:last_message_id"`
	LastMessageAt *time.Time `json:"lastMessageAt" gorm:"column:last_message_at;index"`

	Participant1UnreadCount int `json:"participant1UnreadCount" gorm:"column:participant_1_unread_count;not null;default:0"`
	Participant2UnreadCount int `json:"participant2UnreadCount" gorm:"column:participant_2_unread_count;not null;default:0"`

	IsActive *bool     `json:"isActive" gorm:"default:true"`
	Messages []Message `json:"messages,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeCreate normalizes the participant pair to (min, max) so a caller
// passing the ids in either order lands on the same canonical row.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.Participant1ID == c.Participant2ID {
		return ErrSelfConversation
	}
	if c.Participant1ID > c.Participant2ID {
		c.Participant1ID, c.Participant2ID = c.Participant2ID, c.Participant1ID
	}
	return nil
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uint) bool {
	return userID == c.Participant1ID || userID == c.Participant2ID
}

// UnreadFor returns the unread counter belonging to userID.
func (c *Conversation) UnreadFor(userID uint) int {
	if userID == c.Participant2ID {
		return c.Participant2UnreadCount
	}
	return c.Participant1UnreadCount
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if userID == c.Participant1ID {
		return c.Participant2ID
	}
	return c.Participant1ID
}
