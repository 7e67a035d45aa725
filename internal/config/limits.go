package config

import "time"

const (
	// MaxChatTitleLength is the maximum length for conversation titles.
	// Titles are local only, the cap keeps the sidebar readable.
	MaxChatTitleLength = 255

	// MaxMessageLength is the maximum length of one user message accepted
	// by the gateway. Fits comfortably in one provider request.
	MaxMessageLength = 10000

	// MaxUserIDLength bounds user ids in paths and request bodies.
	MaxUserIDLength = 128

	// MaxConversationIDLength bounds conversation ids. A uuid is 36.
	MaxConversationIDLength = 128

	// DefaultGatewayTimeout is the client-side budget for one gateway call.
	DefaultGatewayTimeout = 10 * time.Second

	// DefaultLogFiles is how many CLI log files SetupLogFile keeps.
	DefaultLogFiles = 5
)
