package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Priority tiers, highest urgency first. Used as the second sort key of the
// nearby feed after the emergency flag.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

type Post struct {
	gorm.Model
	AuthorID      uint           `json:"authorID" gorm:"not null;index"`
	Author        User           `json:"author" gorm:"foreignKey:AuthorID;references:ID"`
	Title         string         `json:"title" gorm:"size:256"`
	Content       string         `json:"content" gorm:"type:text"`
	PostType      string         `json:"postType" gorm:"size:32;index"` // general, safety, event, lost_found, for_sale, weather
	Priority      string         `json:"priority" gorm:"size:16;default:normal;index"`
	IsEmergency   bool           `json:"isEmergency" gorm:"index"`
	Lat           *float64       `json:"lat"`
	Lng           *float64       `json:"lng"`
	LocationCity  string         `json:"locationCity" gorm:"size:128;index"`
	LocationState string         `json:"locationState" gorm:"size:64"`
	Images        datatypes.JSON `json:"images"`
	CommentCount  int            `json:"commentCount" gorm:"not null;default:0"`
	ReactionCount int            `json:"reactionCount" gorm:"not null;default:0"`
	ExpiresAt     *time.Time     `json:"expiresAt" gorm:"index"`

	// Moderation
	IsFlagged  bool   `json:"isFlagged" gorm:"default:false;index"`
	FlagReason string `json:"flagReason" gorm:"type:text"`
	IsRemoved  bool   `json:"isRemoved" gorm:"default:false;index"`
}

// MarshalJSON converts the Images JSON column to a string array for clients
func (p *Post) MarshalJSON() ([]byte, error) {
	type Alias Post
	aux := &struct {
		Images []string `json:"images"`
		Author *User    `json:"author,omitempty"`
		*Alias
	}{
		Images: []string{},
		Alias:  (*Alias)(p),
	}

	if p.Images != nil {
		var images []string
		if err := json.Unmarshal(p.Images, &images); err == nil {
			aux.Images = images
		}
	}
	if p.Author.ID != 0 {
		aux.Author = &p.Author
	}

	return json.Marshal(aux)
}
