package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"stormneighbor-server/models"
	"stormneighbor-server/services"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/datatypes"
)

func CreatePost(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreatePostInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.Lat != nil || input.Lng != nil {
		if input.Lat == nil || input.Lng == nil || !services.ValidCoordinates(*input.Lat, *input.Lng) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid coordinates.", ctx)
			return
		}
	}

	var expiresAt *time.Time
	if input.ExpiresAt != "" {
		parsed, parseErr := time.Parse(time.RFC3339, input.ExpiresAt)
		if parseErr != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "expiresAt must be RFC3339.", ctx)
			return
		}
		expiresAt = &parsed
	}

	var images datatypes.JSON
	if len(input.Images) > 0 {
		if marshalled, marshalErr := json.Marshal(input.Images); marshalErr == nil {
			images = marshalled
		}
	}

	post := models.Post{
		AuthorID:      claims.ID,
		Title:         input.Title,
		Content:       input.Content,
		PostType:      input.PostType,
		Priority:      input.Priority,
		IsEmergency:   input.IsEmergency,
		Lat:           input.Lat,
		Lng:           input.Lng,
		LocationCity:  input.LocationCity,
		LocationState: input.LocationState,
		Images:        images,
		ExpiresAt:     expiresAt,
	}
	if post.Priority == "" {
		post.Priority = models.PriorityNormal
	}

	if err := storage.DB.Create(&post).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if post.IsEmergency {
		go services.NewNotificationService().SendEmergencyPostNotification(&post)
	}

	storage.DB.Preload("Author").First(&post, post.ID)
	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(post)
}

func GetPost(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var post models.Post
	if err := storage.DB.Preload("Author").First(&post, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if post.IsRemoved {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(post)
}

// GetNearbyPosts serves the community feed around a point or scoped to a
// city. Emergency and urgent posts float to the top regardless of distance.
func GetNearbyPosts(ctx iris.Context) {
	lat, latErr := ctx.URLParamFloat64("lat")
	lng, lngErr := ctx.URLParamFloat64("lng")
	if latErr != nil || lngErr != nil || !services.ValidCoordinates(lat, lng) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "lat and lng are required and must be valid coordinates.", ctx)
		return
	}

	params := services.NearbyPostsParams{
		Lat:         lat,
		Lng:         lng,
		City:        ctx.URLParam("city"),
		State:       ctx.URLParam("state"),
		RadiusMiles: services.DefaultRadiusMiles,
		CityOnly:    ctx.URLParamBoolDefault("cityOnly", false),
		Limit:       ctx.URLParamIntDefault("limit", services.DefaultNearbyLimit),
		Offset:      ctx.URLParamIntDefault("offset", 0),
	}
	if radius, radiusErr := ctx.URLParamFloat64("radius"); radiusErr == nil && radius > 0 {
		params.RadiusMiles = radius
	}
	if params.CityOnly && params.City == "" {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "city is required when cityOnly is set.", ctx)
		return
	}

	posts, err := services.NearbyPosts(storage.DB, params, nil)
	if err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}

	ctx.JSON(iris.Map{
		"success": true,
		"posts":   posts,
		"count":   len(posts),
	})
}

func UpdatePost(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var post models.Post
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if post.AuthorID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var input UpdatePostInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]interface{}{
		"title":        input.Title,
		"content":      input.Content,
		"priority":     input.Priority,
		"is_emergency": input.IsEmergency,
	}
	if input.ExpiresAt != "" {
		parsed, parseErr := time.Parse(time.RFC3339, input.ExpiresAt)
		if parseErr != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "expiresAt must be RFC3339.", ctx)
			return
		}
		updates["expires_at"] = parsed
	}

	if err := storage.DB.Model(&post).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.Preload("Author").First(&post, post.ID)
	ctx.JSON(post)
}

func DeletePost(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var post models.Post
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if post.AuthorID != claims.ID && claims.Role != "admin" && claims.Role != "super_admin" {
		utils.CreateForbidden(ctx)
		return
	}

	if err := storage.DB.Delete(&post).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// ReportPost files an abuse report against a post.
func ReportPost(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	postID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var input ReportPostInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var post models.Post
	if err := storage.DB.First(&post, postID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	report := models.Feedback{
		UserID:   claims.ID,
		Category: "abuse_report",
		Message:  input.Reason,
		PostID:   &post.ID,
	}
	if err := storage.DB.Create(&report).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.Model(&post).Updates(map[string]interface{}{"is_flagged": true, "flag_reason": input.Reason})

	ctx.JSON(iris.Map{"success": true})
}

type CreatePostInput struct {
	Title         string   `json:"title" validate:"required,max=256"`
	Content       string   `json:"content" validate:"required,max=10000"`
	PostType      string   `json:"postType" validate:"required,oneof=general safety event lost_found for_sale weather"`
	Priority      string   `json:"priority" validate:"omitempty,oneof=urgent high normal low"`
	IsEmergency   bool     `json:"isEmergency"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	LocationCity  string   `json:"locationCity" validate:"max=128"`
	LocationState string   `json:"locationState" validate:"max=64"`
	Images        []string `json:"images" validate:"max=10,dive,max=512"`
	ExpiresAt     string   `json:"expiresAt"`
}

type UpdatePostInput struct {
	Title       string `json:"title" validate:"required,max=256"`
	Content     string `json:"content" validate:"required,max=10000"`
	Priority    string `json:"priority" validate:"required,oneof=urgent high normal low"`
	IsEmergency bool   `json:"isEmergency"`
	ExpiresAt   string `json:"expiresAt"`
}

type ReportPostInput struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}
