package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	Password            string         `json:"-"`
	SocialLogin         bool           `json:"socialLogin"`
	SocialProvider      string         `json:"socialProvider"`
	AvatarURL           string         `json:"avatarURL"`
	Bio                 string         `json:"bio" gorm:"type:text"`
	LocationCity        string         `json:"locationCity" gorm:"size:128;index"`
	LocationState       string         `json:"locationState" gorm:"size:64"`
	Lat                 *float64       `json:"lat"`
	Lng                 *float64       `json:"lng"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin, super_admin
	Posts               []Post         `json:"posts,omitempty" gorm:"foreignKey:AuthorID;references:ID"`
}

// MarshalJSON renders PushTokens as a plain string array instead of raw JSON bytes
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
