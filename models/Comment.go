package models

import "gorm.io/gorm"

type Comment struct {
	gorm.Model
	PostID   uint   `json:"postID" gorm:"not null;index"`
	AuthorID uint   `json:"authorID" gorm:"not null;index"`
	Author   User   `json:"author" gorm:"foreignKey:AuthorID;references:ID"`
	Content  string `json:"content" gorm:"type:text"`
	IsEdited bool   `json:"isEdited" gorm:"default:false"`
}
