// Package protocol defines the JSON messages exchanged between the chat
// relay server and its clients. Each websocket frame carries exactly one
// message, discriminated by its "type" field. Frames are decoded once at
// the connection boundary; the rest of the server only sees typed values.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators.
const (
	TypeLogin        = "login"
	TypeAuthResponse = "auth_response"
	TypeChatMessage  = "chat_message"
	TypeChatHistory  = "chat_history"
	TypeUserList     = "user_list"
	TypeStatus       = "status"
)

// SystemSender is the sender label on server-originated status messages.
const SystemSender = "System"

// TimestampFormat is the wall-clock format stamped on relayed messages.
const TimestampFormat = "15:04:05"

// Login is the first (and only) message a client may send before
// authenticating.
type Login struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse reports the outcome of a login attempt. Username is set on
// success, Message carries the rejection reason on failure.
type AuthResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ChatMessage is a relayed chat line. Clients supply only Message; Sender
// and Timestamp are assigned by the server on the outbound copy and never
// trusted from the wire.
type ChatMessage struct {
	Type      string `json:"type"`
	Sender    string `json:"sender,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatHistory carries the stored message log to a newly joined client.
type ChatHistory struct {
	Type    string        `json:"type"`
	History []ChatMessage `json:"history"`
}

// UserList carries the current set of online usernames.
type UserList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// Status announces a presence change (user joined/left) to all clients.
type Status struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// UnknownTypeError is returned by Decode for a structurally valid frame
// whose type discriminator is not recognized. Callers treat this
// differently from an unparseable frame: unknown types are ignored,
// unparseable frames are fatal to the session.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// Decode parses one raw frame into its typed message. It returns
// *UnknownTypeError for a valid frame with an unrecognized type, and a
// plain error when the frame is not a structured message at all.
func Decode(data []byte) (any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	switch env.Type {
	case TypeLogin:
		return decodeAs[Login](data)
	case TypeAuthResponse:
		return decodeAs[AuthResponse](data)
	case TypeChatMessage:
		return decodeAs[ChatMessage](data)
	case TypeChatHistory:
		return decodeAs[ChatHistory](data)
	case TypeUserList:
		return decodeAs[UserList](data)
	case TypeStatus:
		return decodeAs[Status](data)
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
}

func decodeAs[T any](data []byte) (*T, error) {
	msg := new(T)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	return msg, nil
}

// NewAuthSuccess builds the response for an accepted login.
func NewAuthSuccess(username string) *AuthResponse {
	return &AuthResponse{Type: TypeAuthResponse, Success: true, Username: username}
}

// NewAuthFailure builds the response for a rejected login.
func NewAuthFailure(reason string) *AuthResponse {
	return &AuthResponse{Type: TypeAuthResponse, Success: false, Message: reason}
}

// NewStatus builds a system status message.
func NewStatus(text, timestamp string) *Status {
	return &Status{Type: TypeStatus, Sender: SystemSender, Message: text, Timestamp: timestamp}
}

// NewUserList builds a presence list message.
func NewUserList(users []string) *UserList {
	return &UserList{Type: TypeUserList, Users: users}
}

// NewChatHistory builds a history message from a store snapshot.
func NewChatHistory(history []ChatMessage) *ChatHistory {
	return &ChatHistory{Type: TypeChatHistory, History: history}
}
