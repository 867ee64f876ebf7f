package routes

import (
	"net/http"

	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
)

type uploadInput struct {
	Data     string `json:"data"`      // base64 data URL or raw base64
	PublicID string `json:"public_id"` // optional
}

// UploadImage handles base64 image upload to Cloudinary
func UploadImage(ctx iris.Context) {
	var in uploadInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}

	publicID := in.PublicID
	if publicID == "" {
		publicID = uuid.NewString()
	}

	url, err := storage.UploadBase64Image(in.Data, publicID)
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "upload_failed", "upload failed")
		return
	}
	ctx.JSON(iris.Map{"url": url})
}

type deleteImageInput struct {
	URL string `json:"url" validate:"required"`
}

// DeleteImage removes an uploaded image by its hosted URL
func DeleteImage(ctx iris.Context) {
	var in deleteImageInput
	if err := ctx.ReadJSON(&in); err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}

	if err := storage.DeleteImage(in.URL); err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "delete_failed", "delete failed")
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}
