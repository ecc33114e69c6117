package models

import "encoding/json"

// Chat turn roles accepted from callers and sent upstream.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatTurn is a single entry of a conversation, replayed upstream in order.
type ChatTurn struct {
	Role string `json:"role" validate:"chat_role"`
	Text string `json:"text"`
}

// ChatRequest is the per-invocation chat input.
// History is kept raw because callers own it and may send entries of any shape;
// the proxy filters them one by one instead of rejecting the whole request.
type ChatRequest struct {
	Message string            `json:"message" validate:"notblank_trimmed"`
	History []json.RawMessage `json:"history,omitempty"`
	Context string            `json:"context,omitempty"`
}
