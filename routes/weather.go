package routes

import (
	"net/http"

	"stormneighbor-server/services"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

// GetCurrentWeather returns current conditions for a point, cached for a few
// minutes in Redis.
func GetCurrentWeather(ctx iris.Context) {
	lat, latErr := ctx.URLParamFloat64("lat")
	lng, lngErr := ctx.URLParamFloat64("lng")
	if latErr != nil || lngErr != nil || !services.ValidCoordinates(lat, lng) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "lat and lng are required and must be valid coordinates.", ctx)
		return
	}

	weather, err := services.FetchCurrentWeather(ctx, lat, lng)
	if err != nil {
		ctx.StopWithStatus(http.StatusBadGateway)
		return
	}
	ctx.JSON(iris.Map{"success": true, "weather": weather})
}

// ListWeatherAlerts lists unexpired alerts, optionally scoped to a city.
func ListWeatherAlerts(ctx iris.Context) {
	city := ctx.URLParam("city")
	state := ctx.URLParam("state")

	alerts, err := services.ActiveWeatherAlerts(storage.DB, city, state)
	if err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.JSON(iris.Map{"success": true, "alerts": alerts})
}

// CheckWeather fetches conditions for a city and, when severe, publishes a
// weather alert and an emergency community post. Admin only.
func CheckWeather(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CheckWeatherInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if !services.ValidCoordinates(input.Lat, input.Lng) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid coordinates.", ctx)
		return
	}

	alert, err := services.CheckAndPublishAlert(ctx, storage.DB, claims.ID, input.City, input.State, input.Lat, input.Lng)
	if err != nil {
		ctx.StopWithStatus(http.StatusBadGateway)
		return
	}
	if alert == nil {
		ctx.JSON(iris.Map{"success": true, "severe": false})
		return
	}

	utils.Audit(ctx, "weather_alert_published", "weather_alert", alert.ID, nil, alert)
	ctx.JSON(iris.Map{"success": true, "severe": true, "alert": alert})
}

type CheckWeatherInput struct {
	City  string  `json:"city" validate:"required,max=128"`
	State string  `json:"state" validate:"required,max=64"`
	Lat   float64 `json:"lat" validate:"required"`
	Lng   float64 `json:"lng" validate:"required"`
}
