package ollama

import (
	"encoding/json"
	"strings"

	"genprovider/internal/models"
)

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	NumPredict       *int     `json:"num_predict,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

func (o options) empty() bool {
	return o.Temperature == nil && o.TopP == nil && o.TopK == nil && o.NumPredict == nil &&
		o.Seed == nil && len(o.Stop) == 0 && o.FrequencyPenalty == nil && o.PresencePenalty == nil
}

// buildChatPayload keeps every role as-is except function results, which
// the runtime does not know and are sent as assistant turns. The function
// name is lost in that downgrade.
func buildChatPayload(req models.GenerationRequest, stream bool) chatPayload {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := msg.Role
		if role == models.RoleFunction {
			role = models.RoleAssistant
		}
		messages = append(messages, chatMessage{Role: string(role), Content: msg.Content})
	}

	params := req.Params
	opts := options{
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		TopK:             params.TopK,
		NumPredict:       params.MaxTokens,
		Seed:             params.Seed,
		Stop:             params.StopSequences,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}

	payload := chatPayload{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	if !opts.empty() {
		payload.Options = &opts
	}
	return payload
}

// chatResponse is both the non-streaming body and one streamed line.
type chatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       string      `json:"created_at"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

func (r chatResponse) usage() *models.TokenUsage {
	if r.PromptEvalCount == 0 && r.EvalCount == 0 {
		return nil
	}
	usage := models.NewTokenUsage(r.PromptEvalCount, r.EvalCount)
	return &usage
}

type tagList struct {
	Models []tagEntry `json:"models"`
}

type tagEntry struct {
	Name    string     `json:"name"`
	Model   string     `json:"model"`
	Size    int64      `json:"size"`
	Details tagDetails `json:"details"`
}

type tagDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// errorMessage extracts {"error":"..."} from an error body.
func errorMessage(body []byte) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error
}

// normalizeTag makes "mistral" and "mistral:latest" compare equal.
func normalizeTag(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}
