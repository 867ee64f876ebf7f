package routes

import (
	"net/http"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

// ListNotifications returns the caller's in-app notification feed.
func ListNotifications(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	var notifications []models.Notification
	err := storage.DB.
		Where("user_id = ?", claims.ID).
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}

	var unread int64
	storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", claims.ID, false).
		Count(&unread)

	ctx.JSON(iris.Map{"success": true, "notifications": notifications, "unread": unread})
}

// MarkNotificationRead flips one notification to read.
func MarkNotificationRead(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var notification models.Notification
	if err := storage.DB.First(&notification, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if notification.UserID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := storage.DB.Model(&notification).Update("is_read", true).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}
