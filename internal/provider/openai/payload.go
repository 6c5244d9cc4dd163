package openai

import (
	"encoding/json"

	"genprovider/internal/models"
)

type chatPayload struct {
	Model            string         `json:"model"`
	Messages         []chatMessage  `json:"messages"`
	Stream           bool           `json:"stream"`
	StreamOptions    *streamOptions `json:"stream_options,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
	Seed             *int64         `json:"seed,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *functionCall `json:"function_call,omitempty"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// buildChatPayload maps the request 1:1. top_k has no counterpart in this
// wire shape and is not sent.
func buildChatPayload(req models.GenerationRequest, stream bool) chatPayload {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		out := chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
		if msg.FunctionCall != nil {
			out.FunctionCall = &functionCall{
				Name:      msg.FunctionCall.Name,
				Arguments: string(msg.FunctionCall.Arguments),
			}
		}
		messages = append(messages, out)
	}

	params := req.Params
	payload := chatPayload{
		Model:            req.Model,
		Messages:         messages,
		Stream:           stream,
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stop:             params.StopSequences,
		Seed:             params.Seed,
	}
	if stream {
		payload.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return payload
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *usageBlock  `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u *usageBlock) toUsage() *models.TokenUsage {
	if u == nil {
		return nil
	}
	usage := models.NewTokenUsage(u.PromptTokens, u.CompletionTokens)
	return &usage
}

type streamChunk struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []streamChoice  `json:"choices"`
	Usage   *usageBlock     `json:"usage,omitempty"`
	Error   *apiErrorObject `json:"error,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type modelList struct {
	Data []modelEntry `json:"data"`
}

type modelEntry struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// errorMessage extracts {"error":{"message":...}} from an error body.
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
