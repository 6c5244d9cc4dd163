package ollama

import (
	"encoding/json"
	"fmt"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

// lineFramer decodes newline-delimited chat records. There is no sentinel:
// a record with done=true or the transport closing ends the stream.
type lineFramer struct {
	// finish is set when the done record also carried text; the finished
	// event is then produced by the next line or by End.
	finish *models.StreamEvent
}

func newFramer() *lineFramer {
	return &lineFramer{}
}

func (f *lineFramer) Line(line []byte) (models.StreamEvent, bool, error) {
	if f.finish != nil {
		return *f.finish, true, nil
	}

	var rec chatResponse
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.StreamEvent{}, false, fmt.Errorf("decode record: %w", err)
	}
	if rec.Error != "" {
		return models.StreamEvent{}, false, provider.NewError(provider.KindStreaming, providerName, rec.Error)
	}
	if rec.Done {
		finished := models.FinishedEvent(rec.DoneReason, rec.usage())
		if rec.Message.Content == "" {
			return finished, true, nil
		}
		f.finish = &finished
		return models.ChunkEvent(rec.Message.Content), true, nil
	}
	if rec.Message.Content == "" {
		return models.StreamEvent{}, false, nil
	}
	return models.ChunkEvent(rec.Message.Content), true, nil
}

func (f *lineFramer) End() (models.StreamEvent, bool, error) {
	if f.finish != nil {
		return *f.finish, true, nil
	}
	return models.FinishedEvent("", nil), true, nil
}
