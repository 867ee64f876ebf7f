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

// AddReaction records a reaction and bumps the post's reaction counter in one
// transaction. The unique index on (post, user, type) makes duplicates a
// conflict rather than a double count.
func AddReaction(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input ReactionInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var post models.Post
	if err := storage.DB.First(&post, input.PostID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	reaction := models.Reaction{
		PostID: post.ID,
		UserID: claims.ID,
		Type:   input.Type,
	}

	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reaction).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			Update("reaction_count", gorm.Expr("reaction_count + 1")).Error
	})
	if err != nil {
		utils.CreateError(iris.StatusConflict, "Conflict", "Reaction already exists.", ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(reaction)
}

// RemoveReaction deletes the caller's reaction and decrements the counter,
// clamped at zero.
func RemoveReaction(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input ReactionInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var reaction models.Reaction
	findErr := storage.DB.
		Where("post_id = ? AND user_id = ? AND type = ?", input.PostID, claims.ID, input.Type).
		First(&reaction).Error
	if findErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&reaction).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", input.PostID).
			Update("reaction_count", gorm.Expr("CASE WHEN reaction_count >= 1 THEN reaction_count - 1 ELSE 0 END")).Error
	})
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// ListReactions: GET /api/reactions?postID=...
func ListReactions(ctx iris.Context) {
	postID, err := ctx.URLParamInt("postID")
	if err != nil || postID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var reactions []models.Reaction
	if err := storage.DB.Where("post_id = ?", postID).Find(&reactions).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}

	counts := map[string]int{}
	for _, reaction := range reactions {
		counts[reaction.Type]++
	}
	ctx.JSON(iris.Map{"reactions": reactions, "counts": counts})
}

type ReactionInput struct {
	PostID uint   `json:"postID" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=like helpful concerned"`
}
