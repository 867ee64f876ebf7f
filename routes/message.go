package routes

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"stormneighbor-server/models"
	"stormneighbor-server/services"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

// CreateMessage appends a message to a conversation. The conversation summary
// (last message pointer, recipient's unread counter) is updated in the same
// transaction by services.SendMessage.
func CreateMessage(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var req CreateMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	message, err := services.SendMessage(storage.DB, services.SendMessageParams{
		ConversationID: req.ConversationID,
		SenderID:       claims.ID,
		Content:        req.Content,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	// Push to the recipient off the request path
	var sender models.User
	if storage.DB.First(&sender, claims.ID).Error == nil {
		senderName := fmt.Sprintf("%s %s", sender.FirstName, sender.LastName)
		go services.NewNotificationService().SendMessageNotification(
			message.RecipientID, message.SenderID, message.ConversationID, senderName)
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(message)
}

// ListMessages: GET /api/messages?conversationID=...&cursor=...&limit=...
func ListMessages(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	convID, err := ctx.URLParamInt("conversationID")
	if err != nil || convID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conv models.Conversation
	if err := storage.DB.First(&conv, convID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if !conv.HasParticipant(claims.ID) {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor, _ := ctx.URLParamInt("cursor")

	q := storage.DB.Where("conversation_id = ?", convID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}

	// reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": msgs, "nextCursor": nextCursor})
}

// SetMessagesRead marks specific messages as read. Only messages addressed
// to the caller that are still unread transition; the unread counter moves by
// exactly the number of rows that flipped.
func SetMessagesRead(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var req SetMessagesReadInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	marked, err := services.MarkMessagesRead(storage.DB, req.ConversationID, claims.ID, req.MessageIDs)
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			ctx.StatusCode(iris.StatusForbidden)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "marked": marked})
}

// EditMessage lets the sender amend a message's content.
func EditMessage(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var msg models.Message
	if err := storage.DB.First(&msg, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if msg.SenderID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input EditMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	now := time.Now()
	updates := map[string]interface{}{"content": input.Content, "is_edited": true, "edited_at": now}
	if err := storage.DB.Model(&msg).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(msg)
}

type CreateMessageInput struct {
	ConversationID uint   `json:"conversationID" validate:"required"`
	Content        string `json:"content" validate:"required,max=5000"`
}

type SetMessagesReadInput struct {
	ConversationID uint   `json:"conversationID" validate:"required"`
	MessageIDs     []uint `json:"messageIDs"`
}

type EditMessageInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}
