package routes

import (
	"net/http"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
)

// AdminListUsers: GET /api/admin/users?page=&per_page=&q=
func AdminListUsers(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	q := ctx.URLParam("q")

	query := storage.DB.Model(&models.User{})
	if q != "" {
		search := "%" + q + "%"
		query = query.Where("lower(first_name) LIKE lower(?) OR lower(last_name) LIKE lower(?) OR lower(email) LIKE lower(?)", search, search, search)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Order("id DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&users).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	utils.JSONPage(ctx, users, page, perPage, total)
}

// AdminChangeUserRole: PATCH /api/admin/users/{id}/role (super_admin only)
func AdminChangeUserRole(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var input ChangeRoleInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	before := user.Role
	if err := storage.DB.Model(&user).Update("role", input.Role).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "user_role_changed", "user", user.ID,
		iris.Map{"role": before}, iris.Map{"role": input.Role})
	ctx.JSON(iris.Map{"success": true})
}

// AdminListPosts: GET /api/admin/posts?flagged=true&page=&per_page=
func AdminListPosts(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := storage.DB.Model(&models.Post{})
	if flagged, err := ctx.URLParamBool("flagged"); err == nil {
		query = query.Where("is_flagged = ?", flagged)
	}

	var total int64
	query.Count(&total)

	var posts []models.Post
	if err := query.Preload("Author").Order("id DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&posts).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	utils.JSONPage(ctx, posts, page, perPage, total)
}

// AdminRemovePost hides a post from all feeds without deleting the row.
func AdminRemovePost(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var input RemovePostInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var post models.Post
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	before := iris.Map{"isRemoved": post.IsRemoved, "flagReason": post.FlagReason}
	updates := map[string]interface{}{"is_removed": true, "flag_reason": input.Reason}
	if err := storage.DB.Model(&post).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "post_removed", "post", post.ID, before,
		iris.Map{"isRemoved": true, "flagReason": input.Reason})
	ctx.JSON(iris.Map{"success": true})
}

// AdminRestorePost reverses a removal.
func AdminRestorePost(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var post models.Post
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	updates := map[string]interface{}{"is_removed": false, "is_flagged": false, "flag_reason": ""}
	if err := storage.DB.Model(&post).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "post_restored", "post", post.ID, nil, nil)
	ctx.JSON(iris.Map{"success": true})
}

// AdminListFeedback: GET /api/admin/feedback?category=abuse_report
func AdminListFeedback(ctx iris.Context) {
	query := storage.DB.Model(&models.Feedback{}).Preload("User")
	if category := ctx.URLParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var feedback []models.Feedback
	if err := query.Order("id DESC").Limit(100).Find(&feedback).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.JSON(iris.Map{"success": true, "feedback": feedback})
}

// AdminStats returns headline counts for the dashboard.
func AdminStats(ctx iris.Context) {
	var users, posts, emergencies, conversations, messages, alerts int64
	storage.DB.Model(&models.User{}).Count(&users)
	storage.DB.Model(&models.Post{}).Count(&posts)
	storage.DB.Model(&models.Post{}).Where("is_emergency = ?", true).Count(&emergencies)
	storage.DB.Model(&models.Conversation{}).Count(&conversations)
	storage.DB.Model(&models.Message{}).Count(&messages)
	storage.DB.Model(&models.WeatherAlert{}).Count(&alerts)

	ctx.JSON(iris.Map{
		"users":          users,
		"posts":          posts,
		"emergencyPosts": emergencies,
		"conversations":  conversations,
		"messages":       messages,
		"weatherAlerts":  alerts,
	})
}

// AdminActivity returns the latest audit log entries.
func AdminActivity(ctx iris.Context) {
	limit := ctx.URLParamIntDefault("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var entries []models.AuditLog
	if err := storage.DB.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.JSON(iris.Map{"success": true, "activity": entries})
}

type ChangeRoleInput struct {
	Role string `json:"role" validate:"required,oneof=user admin super_admin"`
}

type RemovePostInput struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}
