package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WeatherAlert struct {
	gorm.Model
	LocationCity  string         `json:"locationCity" gorm:"size:128;index"`
	LocationState string         `json:"locationState" gorm:"size:64"`
	Lat           float64        `json:"lat"`
	Lng           float64        `json:"lng"`
	ConditionCode int            `json:"conditionCode"`
	Headline      string         `json:"headline" gorm:"size:256"`
	Severity      string         `json:"severity" gorm:"size:16;index"` // advisory, warning, emergency
	Payload       datatypes.JSON `json:"payload"`
	PostID        *uint          `json:"postID" gorm:"index"` // auto-published community post, if any
	ExpiresAt     *time.Time     `json:"expiresAt" gorm:"index"`
}
