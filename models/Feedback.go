package models

import "gorm.io/gorm"

// Feedback covers both general app feedback and reports about a specific post.
type Feedback struct {
	gorm.Model
	UserID   uint   `json:"userID" gorm:"index;not null"`
	User     User   `json:"user" gorm:"foreignKey:UserID;references:ID"`
	Category string `json:"category" gorm:"size:32;index"` // bug, idea, abuse_report
	Message  string `json:"message" gorm:"type:text;not null"`
	PostID   *uint  `json:"postID" gorm:"index"` // set for abuse_report
	Rating   *int   `json:"rating"`              // optional 1-5
	Resolved bool   `json:"resolved" gorm:"default:false;index"`
}
