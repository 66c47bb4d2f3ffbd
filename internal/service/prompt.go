package service

import (
	"github.com/jharjadi/wikigpt/core-api-go/internal/model"
)

// SystemPrompt instructs the model how to use the Wikipedia context.
// The resolved context is appended after it.
const SystemPrompt = "You are WikiGPT, a helpful assistant that answers questions based on Wikipedia information. " +
	"Use the following Wikipedia content to answer the user's question. " +
	"If the Wikipedia content doesn't contain the answer, say so and answer based on your knowledge, " +
	"but make it clear what information comes from Wikipedia and what doesn't. " +
	"Format your response clearly, with proper paragraphs. " +
	"Here's the Wikipedia content to help answer the most recent question:"

// BuildSystemMessage returns the system message carrying the grounding context.
func BuildSystemMessage(contextText string) string {
	return SystemPrompt + "\n\n" + contextText
}

// FilterMessages returns the turns forwarded to the model: user and assistant
// only. Caller-supplied system turns are dropped; the gateway's own system
// message carries the instructions and context.
func FilterMessages(messages []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant:
			out = append(out, m)
		}
	}
	return out
}

// LastUserMessage returns the content of the most recent user turn, or "".
func LastUserMessage(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
