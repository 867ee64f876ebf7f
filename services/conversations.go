package services

import (
	"errors"
	"fmt"
	"time"

	"stormneighbor-server/models"

	"gorm.io/gorm"
)

var ErrNotParticipant = errors.New("user is not a participant of this conversation")

// Conversation state maintenance. The conversations table carries a
// denormalized summary of each thread (last message pointer, per-participant
// unread counters) that must stay consistent with the append-only messages
// table. Every mutation below runs the message write and the summary update
// in one transaction, and counter math is expressed server-side
// (count = count + 1) so concurrent senders cannot lose updates.

// StartConversation finds or creates the conversation between two users.
// The pair is normalized to (min, max) before the lookup and the insert, so
// either argument order maps to the same canonical row.
func StartConversation(db *gorm.DB, userA, userB uint) (*models.Conversation, error) {
	if userA == userB {
		return nil, models.ErrSelfConversation
	}
	p1, p2 := userA, userB
	if p1 > p2 {
		p1, p2 = p2, p1
	}

	var conv models.Conversation
	err := db.Where("participant_1_id = ? AND participant_2_id = ?", p1, p2).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{Participant1ID: p1, Participant2ID: p2}
	if createErr := db.Create(&conv).Error; createErr != nil {
		// A concurrent caller may have created the row between the lookup
		// and the insert; re-read before giving up.
		var existing models.Conversation
		if db.Where("participant_1_id = ? AND participant_2_id = ?", p1, p2).First(&existing).Error == nil {
			return &existing, nil
		}
		return nil, createErr
	}
	return &conv, nil
}

type SendMessageParams struct {
	ConversationID uint
	SenderID       uint
	Content        string
}

// SendMessage appends a message and updates the owning conversation's summary
// in the same transaction: last_message_id, last_message_at, and exactly the
// recipient's unread counter incremented by one. A failure in either write
// rolls back both.
func SendMessage(db *gorm.DB, p SendMessageParams) (*models.Message, error) {
	var msg *models.Message
	err := db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, p.ConversationID).Error; err != nil {
			return err
		}
		if !conv.HasParticipant(p.SenderID) {
			return ErrNotParticipant
		}

		counterColumn := "participant_1_unread_count"
		if conv.OtherParticipant(p.SenderID) == conv.Participant2ID {
			counterColumn = "participant_2_unread_count"
		}

		m := models.Message{
			ConversationID: conv.ID,
			SenderID:       p.SenderID,
			RecipientID:    conv.OtherParticipant(p.SenderID),
			Content:        p.Content,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"last_message_id": m.ID,
			"last_message_at": m.CreatedAt,
			counterColumn:     gorm.Expr(counterColumn + " + 1"),
		})
		if res.Error != nil {
			return res.Error
		}

		msg = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessagesRead flips is_read on the reader's unread messages in the
// conversation and decrements the reader's unread counter by the number of
// rows that actually transitioned. Messages already read are untouched, so
// re-marking is a no-op on the counter. The decrement is clamped at zero:
// an out-of-order or duplicate call can never drive the counter negative.
//
// When messageIDs is empty the whole conversation is marked read.
// Returns the number of messages transitioned.
func MarkMessagesRead(db *gorm.DB, conversationID, readerID uint, messageIDs []uint) (int64, error) {
	var marked int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			return err
		}
		if !conv.HasParticipant(readerID) {
			return ErrNotParticipant
		}

		now := time.Now()
		q := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conv.ID, readerID, false)
		if len(messageIDs) > 0 {
			q = q.Where("id IN ?", messageIDs)
		}
		res := q.Updates(map[string]interface{}{"is_read": true, "read_at": now})
		if res.Error != nil {
			return res.Error
		}
		marked = res.RowsAffected
		if marked == 0 {
			return nil
		}

		counterColumn := "participant_1_unread_count"
		if readerID == conv.Participant2ID {
			counterColumn = "participant_2_unread_count"
		}
		clamp := gorm.Expr(
			fmt.Sprintf("CASE WHEN %s >= ? THEN %s - ? ELSE 0 END", counterColumn, counterColumn),
			marked, marked,
		)
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			Update(counterColumn, clamp).Error
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// RecomputeUnreadCounts recounts unread messages per participant and
// overwrites both counters. Idempotent safety net for counters that drifted
// through a write path that bypassed SendMessage/MarkMessagesRead.
func RecomputeUnreadCounts(db *gorm.DB, conversationID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			return err
		}

		var count1, count2 int64
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conv.ID, conv.Participant1ID, false).
			Count(&count1).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conv.ID, conv.Participant2ID, false).
			Count(&count2).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"participant_1_unread_count": count1,
			"participant_2_unread_count": count2,
		}).Error
	})
}

// DeactivateConversation soft-deletes a thread from the user's inbox.
// Conversations are never hard-deleted through the API.
func DeactivateConversation(db *gorm.DB, conversationID, userID uint) error {
	var conv models.Conversation
	if err := db.First(&conv, conversationID).Error; err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	inactive := false
	return db.Model(&conv).Update("is_active", &inactive).Error
}

// ConversationsForUser lists a user's active threads, most recent first.
func ConversationsForUser(db *gorm.DB, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := db.
		Where("(participant_1_id = ? OR participant_2_id = ?) AND is_active = ?", userID, userID, true).
		Preload("Participant1").
		Preload("Participant2").
		Order("last_message_at DESC NULLS LAST").
		Find(&conversations).Error
	return conversations, err
}
