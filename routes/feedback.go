package routes

import (
	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

func CreateFeedback(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateFeedbackInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	feedback := models.Feedback{
		UserID:   claims.ID,
		Category: input.Category,
		Message:  input.Message,
		Rating:   input.Rating,
	}
	if err := storage.DB.Create(&feedback).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(feedback)
}

type CreateFeedbackInput struct {
	Category string `json:"category" validate:"required,oneof=bug idea abuse_report"`
	Message  string `json:"message" validate:"required,max=5000"`
	Rating   *int   `json:"rating" validate:"omitempty,min=1,max=5"`
}
