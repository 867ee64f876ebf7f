package routes

import (
	"net/http"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
)

// CreateComment inserts the comment and bumps the post's comment counter in
// one transaction. The counter update is a server-side relative increment,
// same rule as the conversation unread counters.
func CreateComment(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateCommentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var post models.Post
	if err := storage.DB.First(&post, input.PostID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: claims.ID,
		Content:  input.Content,
	}

	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.Preload("Author").First(&comment, comment.ID)
	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(comment)
}

// ListComments: GET /api/comments?postID=...&cursor=...&limit=...
func ListComments(ctx iris.Context) {
	postID, err := ctx.URLParamInt("postID")
	if err != nil || postID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor, _ := ctx.URLParamInt("cursor")

	q := storage.DB.Where("post_id = ?", postID)
	if cursor > 0 {
		q = q.Where("id > ?", cursor)
	}
	var comments []models.Comment
	if err := q.Preload("Author").Order("id ASC").Limit(limit).Find(&comments).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}

	nextCursor := 0
	if len(comments) > 0 {
		nextCursor = int(comments[len(comments)-1].ID)
	}
	ctx.JSON(iris.Map{"comments": comments, "nextCursor": nextCursor})
}

func UpdateComment(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var comment models.Comment
	if err := storage.DB.First(&comment, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if comment.AuthorID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input UpdateCommentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{"content": input.Content, "is_edited": true}
	if err := storage.DB.Model(&comment).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(comment)
}

// DeleteComment removes the comment and decrements the post's counter,
// clamped at zero.
func DeleteComment(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var comment models.Comment
	if err := storage.DB.First(&comment, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if comment.AuthorID != claims.ID && claims.Role != "admin" && claims.Role != "super_admin" {
		utils.CreateForbidden(ctx)
		return
	}

	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("comment_count", gorm.Expr("CASE WHEN comment_count >= 1 THEN comment_count - 1 ELSE 0 END")).Error
	})
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

type CreateCommentInput struct {
	PostID  uint   `json:"postID" validate:"required"`
	Content string `json:"content" validate:"required,max=5000"`
}

type UpdateCommentInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}
