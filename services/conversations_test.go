package services

import (
	"errors"
	"sync"
	"testing"

	"stormneighbor-server/models"
)

func TestStartConversationCanonicalPair(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")

	conv, err := StartConversation(db, b.ID, a.ID)
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	if conv.Participant1ID >= conv.Participant2ID {
		t.Fatalf("pair not canonical: (%d, %d)", conv.Participant1ID, conv.Participant2ID)
	}

	// Reversed argument order must land on the same row.
	again, err := StartConversation(db, a.ID, b.ID)
	if err != nil {
		t.Fatalf("start conversation again: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("expected same conversation, got %d and %d", conv.ID, again.ID)
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 conversation row, got %d", count)
	}
}

func TestStartConversationRejectsSelf(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")

	if _, err := StartConversation(db, a.ID, a.ID); !errors.Is(err, models.ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}

func TestSendMessageUpdatesSummary(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	msg, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "hi"})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.RecipientID != b.ID {
		t.Fatalf("recipient = %d, want %d", msg.RecipientID, b.ID)
	}

	var got models.Conversation
	if err := db.First(&got, conv.ID).Error; err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if got.LastMessageID == nil || *got.LastMessageID != msg.ID {
		t.Fatalf("last_message_id not set to %d", msg.ID)
	}
	if got.LastMessageAt == nil {
		t.Fatal("last_message_at not set")
	}
	if got.UnreadFor(b.ID) != 1 {
		t.Fatalf("recipient unread = %d, want 1", got.UnreadFor(b.ID))
	}
	if got.UnreadFor(a.ID) != 0 {
		t.Fatalf("sender unread = %d, want 0", got.UnreadFor(a.ID))
	}

	// Reply moves the other counter only.
	if _, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: b.ID, Content: "hello"}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	db.First(&got, conv.ID)
	if got.UnreadFor(a.ID) != 1 || got.UnreadFor(b.ID) != 1 {
		t.Fatalf("unread after reply = (%d, %d), want (1, 1)", got.UnreadFor(a.ID), got.UnreadFor(b.ID))
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	c := seedUser(t, db, "Cam", "J", "cam@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	_, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: c.ID, Content: "intruding"})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	// Failed send must not leave a message or touch the summary.
	var msgCount int64
	db.Model(&models.Message{}).Count(&msgCount)
	if msgCount != 0 {
		t.Fatalf("expected 0 messages, got %d", msgCount)
	}
}

func TestMarkMessagesReadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	for i := 0; i < 3; i++ {
		if _, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "m"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	marked, err := MarkMessagesRead(db, conv.ID, b.ID, nil)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 3 {
		t.Fatalf("marked = %d, want 3", marked)
	}

	var got models.Conversation
	db.First(&got, conv.ID)
	if got.UnreadFor(b.ID) != 0 {
		t.Fatalf("unread = %d, want 0", got.UnreadFor(b.ID))
	}

	// Already-read messages must not transition again.
	marked, err = MarkMessagesRead(db, conv.ID, b.ID, nil)
	if err != nil {
		t.Fatalf("re-mark read: %v", err)
	}
	if marked != 0 {
		t.Fatalf("re-mark transitioned %d messages, want 0", marked)
	}
	db.First(&got, conv.ID)
	if got.UnreadFor(b.ID) != 0 {
		t.Fatalf("unread after re-mark = %d, want 0", got.UnreadFor(b.ID))
	}
}

func TestMarkMessagesReadSubset(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	var ids []uint
	for i := 0; i < 3; i++ {
		msg, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "m"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	marked, err := MarkMessagesRead(db, conv.ID, b.ID, ids[:2])
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 2 {
		t.Fatalf("marked = %d, want 2", marked)
	}

	var got models.Conversation
	db.First(&got, conv.ID)
	if got.UnreadFor(b.ID) != 1 {
		t.Fatalf("unread = %d, want 1", got.UnreadFor(b.ID))
	}
}

func TestMarkMessagesReadClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	for i := 0; i < 3; i++ {
		if _, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "m"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	// Simulate counter drift below the true unread count.
	counterColumn := "participant_1_unread_count"
	if b.ID == conv.Participant2ID {
		counterColumn = "participant_2_unread_count"
	}
	if err := db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Update(counterColumn, 1).Error; err != nil {
		t.Fatalf("force drift: %v", err)
	}

	marked, err := MarkMessagesRead(db, conv.ID, b.ID, nil)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 3 {
		t.Fatalf("marked = %d, want 3", marked)
	}

	var got models.Conversation
	db.First(&got, conv.ID)
	if got.UnreadFor(b.ID) != 0 {
		t.Fatalf("unread = %d, want clamp at 0", got.UnreadFor(b.ID))
	}
}

func TestConcurrentSendsCountEveryMessage(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	const sends = 20
	var wg sync.WaitGroup
	errs := make(chan error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "m"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent send: %v", err)
		}
	}

	var got models.Conversation
	db.First(&got, conv.ID)
	if got.UnreadFor(b.ID) != sends {
		t.Fatalf("unread = %d, want %d: a relative update must not lose increments", got.UnreadFor(b.ID), sends)
	}
}

func TestRecomputeUnreadCountsRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	for i := 0; i < 4; i++ {
		if _, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: a.ID, Content: "m"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if _, err := SendMessage(db, SendMessageParams{ConversationID: conv.ID, SenderID: b.ID, Content: "back"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Corrupt both counters out from under the maintained path.
	if err := db.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
		"participant_1_unread_count": 99,
		"participant_2_unread_count": 99,
	}).Error; err != nil {
		t.Fatalf("corrupt counters: %v", err)
	}

	if err := RecomputeUnreadCounts(db, conv.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var got models.Conversation
	db.First(&got, conv.ID)
	if got.UnreadFor(a.ID) != 1 || got.UnreadFor(b.ID) != 4 {
		t.Fatalf("unread after recompute = (%d, %d), want (1, 4)", got.UnreadFor(a.ID), got.UnreadFor(b.ID))
	}
}

func TestConversationsForUserSkipsDeactivated(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	c := seedUser(t, db, "Cam", "J", "cam@example.com")

	withB, _ := StartConversation(db, a.ID, b.ID)
	withC, _ := StartConversation(db, a.ID, c.ID)

	if _, err := SendMessage(db, SendMessageParams{ConversationID: withB.ID, SenderID: b.ID, Content: "first"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := SendMessage(db, SendMessageParams{ConversationID: withC.ID, SenderID: c.ID, Content: "second"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	list, err := ConversationsForUser(db, a.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	if list[0].ID != withC.ID {
		t.Fatalf("expected most recent thread first, got %d", list[0].ID)
	}

	if err := DeactivateConversation(db, withB.ID, a.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err = ConversationsForUser(db, a.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 1 || list[0].ID != withC.ID {
		t.Fatalf("expected only active thread %d, got %+v", withC.ID, list)
	}
}

func TestDeactivateConversationRejectsNonParticipant(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, "Ada", "L", "ada@example.com")
	b := seedUser(t, db, "Ben", "K", "ben@example.com")
	c := seedUser(t, db, "Cam", "J", "cam@example.com")
	conv, _ := StartConversation(db, a.ID, b.ID)

	if err := DeactivateConversation(db, conv.ID, c.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

