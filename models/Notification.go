package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Notification struct {
	gorm.Model
	UserID uint           `json:"userID" gorm:"not null;index"`
	Type   string         `json:"type" gorm:"size:32;index"` // message, emergency_post, weather_alert
	Title  string         `json:"title" gorm:"size:256"`
	Body   string         `json:"body" gorm:"type:text"`
	Data   datatypes.JSON `json:"data"`
	IsRead bool           `json:"isRead" gorm:"default:false;index"`
}
