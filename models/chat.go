package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Conversation struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants  []primitive.ObjectID `bson:"participants" json:"participants"`
	Key           string               `bson:"key" json:"-"` // sorted participant ids, unique
	LastMessage   string               `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastSenderID  *primitive.ObjectID  `bson:"last_sender_id,omitempty" json:"last_sender_id,omitempty"`
	LastMessageAt *time.Time           `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether uid belongs to the conversation.
func (c Conversation) HasParticipant(uid primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// ConversationKey is the order-independent identity of a two-person conversation.
func ConversationKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if y < x {
		x, y = y, x
	}
	return x + "_" + y
}

type Message struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID   `bson:"conversation_id" json:"conversation_id"`
	SenderID       primitive.ObjectID   `bson:"sender_id" json:"sender_id"`
	Text           string               `bson:"text" json:"text"`
	ReadBy         []primitive.ObjectID `bson:"read_by" json:"read_by"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
}
