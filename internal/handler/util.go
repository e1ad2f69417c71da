package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"littlebot/internal/logger"

	"go.uber.org/zap"
)

// Slack message length limit (approximately 40,000 characters)
const maxMessageLength = 40000

func printJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		logger.GetLogger().Error("failed to marshal to JSON", zap.Error(err))
		return fmt.Sprintf("%v", v) // fallback to string representation if marshaling fails
	}
	return string(b)
}

func truncateMessage(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	logger.GetLogger().Info("message too long, truncating",
		zap.Int("length", len(text)),
		zap.Int("max_length", maxMessageLength))
	const marker = "\n...(truncated)"
	return strings.ToValidUTF8(text[:maxMessageLength-len(marker)], "") + marker
}
