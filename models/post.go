package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID   `bson:"user_id" json:"user_id"`
	Content      string               `bson:"content" json:"content"`
	Images       []string             `bson:"images" json:"images"`
	Category     string               `bson:"category,omitempty" json:"category,omitempty"`
	Likes        []primitive.ObjectID `bson:"likes" json:"-"`
	LikeCount    int                  `bson:"like_count" json:"like_count"`
	CommentCount int                  `bson:"comment_count" json:"comment_count"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`

	LikedByMe bool `bson:"-" json:"liked_by_me,omitempty"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"post_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
