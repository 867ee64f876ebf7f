package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const weatherCacheTTL = 10 * time.Minute

// CurrentWeather is the subset of the Open-Meteo current-weather payload the
// app cares about.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WeatherCode   int     `json:"weathercode"`
	Time          string  `json:"time"`
	FetchedAt     string  `json:"fetchedAt"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	SevereWeather bool    `json:"severeWeather"`
}

// WMO weather codes that warrant an alert: thunderstorms and heavy
// precipitation variants.
var severeWeatherCodes = map[int]string{
	65: "Heavy rain",
	67: "Heavy freezing rain",
	75: "Heavy snowfall",
	82: "Violent rain showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// Sustained wind above this is treated as severe regardless of code.
const severeWindKmh = 75.0

func weatherCacheKey(lat, lng float64) string {
	return fmt.Sprintf("weather:%.3f:%.3f", lat, lng)
}

// FetchCurrentWeather returns current conditions for a point, serving from
// the Redis cache when a recent fetch exists.
func FetchCurrentWeather(ctx context.Context, lat, lng float64) (*CurrentWeather, error) {
	key := weatherCacheKey(lat, lng)
	if storage.Redis != nil {
		if cached, err := storage.Redis.Get(ctx, key).Result(); err == nil {
			var w CurrentWeather
			if json.Unmarshal([]byte(cached), &w) == nil {
				return &w, nil
			}
		}
	}

	endpoint := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&current_weather=true",
		lat, lng,
	)
	res, err := http.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("open-meteo status %d", res.StatusCode)
	}

	var parsed struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
			Time        string  `json:"time"`
		} `json:"current_weather"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	w := &CurrentWeather{
		Temperature: parsed.CurrentWeather.Temperature,
		WindSpeed:   parsed.CurrentWeather.WindSpeed,
		WeatherCode: parsed.CurrentWeather.WeatherCode,
		Time:        parsed.CurrentWeather.Time,
		FetchedAt:   time.Now().UTC().Format(time.RFC3339),
		Lat:         lat,
		Lng:         lng,
	}
	_, w.SevereWeather = severeWeatherCodes[w.WeatherCode]
	if w.WindSpeed >= severeWindKmh {
		w.SevereWeather = true
	}

	if storage.Redis != nil {
		if payload, err := json.Marshal(w); err == nil {
			storage.Redis.Set(ctx, key, payload, weatherCacheTTL)
		}
	}
	return w, nil
}

// CheckAndPublishAlert fetches conditions for a city's coordinates and, when
// severe, records a WeatherAlert and auto-publishes an emergency weather post
// so the alert shows at the top of the nearby feed. The alert and the post
// are written in one transaction.
func CheckAndPublishAlert(ctx context.Context, db *gorm.DB, authorID uint, city, state string, lat, lng float64) (*models.WeatherAlert, error) {
	w, err := FetchCurrentWeather(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	if !w.SevereWeather {
		return nil, nil
	}

	headline, ok := severeWeatherCodes[w.WeatherCode]
	if !ok {
		headline = "Dangerous winds"
	}

	payload, _ := json.Marshal(w)
	expires := time.Now().Add(6 * time.Hour)

	alert := models.WeatherAlert{
		LocationCity:  city,
		LocationState: state,
		Lat:           lat,
		Lng:           lng,
		ConditionCode: w.WeatherCode,
		Headline:      headline,
		Severity:      "emergency",
		Payload:       datatypes.JSON(payload),
		ExpiresAt:     &expires,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}

		post := models.Post{
			AuthorID:      authorID,
			Title:         fmt.Sprintf("Weather alert: %s in %s", headline, city),
			Content:       fmt.Sprintf("%s reported near %s, %s. Wind %.0f km/h, %.0f°C. Stay safe and check on your neighbors.", headline, city, state, w.WindSpeed, w.Temperature),
			PostType:      "weather",
			Priority:      models.PriorityUrgent,
			IsEmergency:   true,
			Lat:           &lat,
			Lng:           &lng,
			LocationCity:  city,
			LocationState: state,
			ExpiresAt:     &expires,
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		return tx.Model(&alert).Update("post_id", post.ID).Error
	})
	if err != nil {
		return nil, err
	}

	// Fan out pushes outside the transaction
	if alert.PostID != nil {
		var post models.Post
		if db.First(&post, *alert.PostID).Error == nil {
			go NewNotificationService().SendEmergencyPostNotification(&post)
		}
	} else {
		log.Printf("weather alert %d published without post reference", alert.ID)
	}

	return &alert, nil
}

// ActiveWeatherAlerts lists unexpired alerts for a city.
func ActiveWeatherAlerts(db *gorm.DB, city, state string) ([]models.WeatherAlert, error) {
	var alerts []models.WeatherAlert
	q := db.Where("expires_at IS NULL OR expires_at > ?", time.Now())
	if city != "" {
		q = q.Where("location_city = ? AND location_state = ?", city, state)
	}
	err := q.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}
