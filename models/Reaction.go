package models

import "gorm.io/gorm"

// Reaction is one user's reaction to a post. The unique index keeps a user
// from stacking duplicates of the same type on one post.
type Reaction struct {
	gorm.Model
	PostID uint   `json:"postID" gorm:"not null;uniqueIndex:idx_reaction_post_user_type"`
	UserID uint   `json:"userID" gorm:"not null;uniqueIndex:idx_reaction_post_user_type"`
	Type   string `json:"type" gorm:"size:16;not null;uniqueIndex:idx_reaction_post_user_type"` // like, helpful, concerned
}
