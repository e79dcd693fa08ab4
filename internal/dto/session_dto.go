package dto

import "time"

type HistoryMessageResponse struct {
	Id        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Route     string    `json:"route,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionHistoryResponse struct {
	SessionId string                   `json:"session_id"`
	Messages  []HistoryMessageResponse `json:"messages"`
}
