package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

// DefaultMaxTokens is sent when the request leaves max_tokens unset; the
// messages API requires it on every call.
const DefaultMaxTokens = 4096

type messagePayload struct {
	Model         string    `json:"model"`
	Messages      []message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	TopK          *int      `json:"top_k,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// buildMessagePayload lifts system messages into the top-level system
// field and sends function results as user turns. Frequency and presence
// penalties and the seed have no counterpart in this wire shape.
func buildMessagePayload(req models.GenerationRequest, stream bool) (messagePayload, error) {
	messages := make([]message, 0, len(req.Messages))
	var systemParts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			if strings.TrimSpace(msg.Content) != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case models.RoleUser, models.RoleAssistant, models.RoleFunction:
			text := strings.TrimSpace(msg.Content)
			if text == "" {
				return messagePayload{}, provider.NewError(provider.KindInvalidRequest, providerName, "messages must not be empty")
			}
			role := string(msg.Role)
			if msg.Role == models.RoleFunction {
				role = string(models.RoleUser)
				text = functionResultText(msg)
			}
			messages = append(messages, message{
				Role:    role,
				Content: []contentBlock{{Type: "text", Text: text}},
			})
		default:
			return messagePayload{}, provider.NewError(provider.KindInvalidRequest, providerName, fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	if len(messages) == 0 {
		return messagePayload{}, provider.NewError(provider.KindInvalidRequest, providerName, "request requires at least one user message")
	}
	if messages[0].Role != string(models.RoleUser) {
		return messagePayload{}, provider.NewError(provider.KindInvalidRequest, providerName, "conversation must start with a user message")
	}

	params := req.Params
	maxTokens := DefaultMaxTokens
	if params.MaxTokens != nil && *params.MaxTokens > 0 {
		maxTokens = *params.MaxTokens
	}

	payload := messagePayload{
		Model:         req.Model,
		Messages:      messages,
		MaxTokens:     maxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		StopSequences: params.StopSequences,
		Stream:        stream,
	}
	if len(systemParts) > 0 {
		payload.System = strings.Join(systemParts, "\n\n")
	}
	return payload, nil
}

func functionResultText(msg models.ChatMessage) string {
	name := msg.Name
	if name == "" && msg.FunctionCall != nil {
		name = msg.FunctionCall.Name
	}
	if name == "" {
		return msg.Content
	}
	return fmt.Sprintf("[%s] %s", name, msg.Content)
}

type messageResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Usage      usageBlock     `json:"usage"`
	StopReason string         `json:"stop_reason"`
}

// text concatenates the text blocks; tool-use and other block types are skipped.
func (r messageResponse) text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

type usageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u usageBlock) toUsage() *models.TokenUsage {
	usage := models.NewTokenUsage(u.InputTokens, u.OutputTokens)
	return &usage
}

// streamEvent is the union of the typed SSE event payloads.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Model string     `json:"model"`
		Usage usageBlock `json:"usage"`
	} `json:"message,omitempty"`
	ContentBlock *contentBlock `json:"content_block,omitempty"`
	Delta        *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *usageBlock `json:"usage,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorMessage extracts {"error":{"type":...,"message":...}} from an error body.
func errorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return ""
	}
	if apiErr.Error.Type != "" {
		return apiErr.Error.Type + ": " + apiErr.Error.Message
	}
	return apiErr.Error.Message
}
