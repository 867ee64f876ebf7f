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

// CreateConversation finds or creates the direct thread between the caller
// and another user, optionally sending a first message.
func CreateConversation(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateConversationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	conv, err := services.StartConversation(storage.DB, claims.ID, input.UserID)
	if err != nil {
		if errors.Is(err, models.ErrSelfConversation) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Cannot start a conversation with yourself.", ctx)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	if input.Message != "" {
		if _, err := services.SendMessage(storage.DB, services.SendMessageParams{
			ConversationID: conv.ID,
			SenderID:       claims.ID,
			Content:        input.Message,
		}); err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		storage.DB.First(conv, conv.ID)
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(conv)
}

func GetConversationByID(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var conv models.Conversation
	if err := storage.DB.Preload("Participant1").Preload("Participant2").First(&conv, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if !conv.HasParticipant(claims.ID) {
		utils.CreateForbidden(ctx)
		return
	}
	ctx.JSON(conv)
}

// GetConversationsByUserID lists the caller's inbox, most recent first.
func GetConversationsByUserID(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	if fmt.Sprint(claims.ID) != id {
		utils.CreateForbidden(ctx)
		return
	}

	conversations, err := services.ConversationsForUser(storage.DB, claims.ID)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "conversations": conversations})
}

// MarkConversationRead marks every unread message addressed to the caller as
// read and settles the unread counter.
func MarkConversationRead(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	marked, markErr := services.MarkMessagesRead(storage.DB, id, claims.ID, nil)
	if markErr != nil {
		if errors.Is(markErr, services.ErrNotParticipant) {
			utils.CreateForbidden(ctx)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "marked": marked})
}

// DeactivateConversation hides the thread from the caller's inbox.
func DeactivateConversation(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if err := services.DeactivateConversation(storage.DB, id, claims.ID); err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			utils.CreateForbidden(ctx)
			return
		}
		utils.CreateNotFound(ctx)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// RecomputeConversationCounters is an admin safety net that rebuilds the
// unread counters from the messages table.
func RecomputeConversationCounters(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if err := services.RecomputeUnreadCounts(storage.DB, id); err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var conv models.Conversation
	storage.DB.First(&conv, id)
	ctx.JSON(iris.Map{"success": true, "conversation": conv})
}

// Typing sets a short-lived typing indicator for the caller in Redis.
func Typing(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conv models.Conversation
	if err := storage.DB.First(&conv, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if !conv.HasParticipant(claims.ID) {
		utils.CreateForbidden(ctx)
		return
	}

	storage.Redis.Set(ctx, typingKey(conv.ID, claims.ID), "1", 5*time.Second)
	ctx.JSON(iris.Map{"success": true})
}

// ListTyping reports whether the other participant is currently typing.
func ListTyping(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conv models.Conversation
	if err := storage.DB.First(&conv, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if !conv.HasParticipant(claims.ID) {
		utils.CreateForbidden(ctx)
		return
	}

	other := conv.OtherParticipant(claims.ID)
	typing := false
	if val, getErr := storage.Redis.Get(ctx, typingKey(conv.ID, other)).Result(); getErr == nil && val == "1" {
		typing = true
	}
	ctx.JSON(iris.Map{"success": true, "typing": typing, "userID": other})
}

func typingKey(conversationID, userID uint) string {
	return fmt.Sprintf("typing:conv:%d:user:%d", conversationID, userID)
}

type CreateConversationInput struct {
	UserID  uint   `json:"userID" validate:"required"`
	Message string `json:"message" validate:"max=5000"`
}
