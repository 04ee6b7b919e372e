package domain

import "time"

// ChatSession is one conversation of a user with the assistant.
// PK: user_id, SK: session_id. Messages are stored as sent by the client.
type ChatSession struct {
	UserID    string                   `json:"user_id" dynamodbav:"user_id"`
	SessionID string                   `json:"session_id" dynamodbav:"session_id"`
	Title     string                   `json:"title" dynamodbav:"title"`
	Messages  []map[string]interface{} `json:"messages" dynamodbav:"messages"`
	CreatedAt time.Time                `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time                `json:"updated_at" dynamodbav:"updated_at"`
}

type SaveChatSessionRequest struct {
	Session ChatSessionInput `json:"session" validate:"required"`
}

type ChatSessionInput struct {
	SessionID string                   `json:"session_id" validate:"required"`
	Title     string                   `json:"title"`
	Messages  []map[string]interface{} `json:"messages"`
}
