package stream

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

// lineFramer treats each line as {"text":..., "done":...}. When endOnClose
// is set, transport close completes the stream.
type lineFramer struct {
	endOnClose bool
	lines      []string
}

func (f *lineFramer) Line(line []byte) (models.StreamEvent, bool, error) {
	f.lines = append(f.lines, string(line))
	var rec struct {
		Text string `json:"text"`
		Done bool   `json:"done"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.StreamEvent{}, false, err
	}
	if rec.Done {
		return models.FinishedEvent("stop", nil), true, nil
	}
	if rec.Text == "" {
		return models.StreamEvent{}, false, nil
	}
	return models.ChunkEvent(rec.Text), true, nil
}

func (f *lineFramer) End() (models.StreamEvent, bool, error) {
	if f.endOnClose {
		return models.FinishedEvent("", nil), true, nil
	}
	return models.StreamEvent{}, false, nil
}

func deltas(events []models.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.IsFinished() {
			b.WriteString("|")
			continue
		}
		b.WriteString(ev.Delta)
	}
	return b.String()
}

func TestDecoderHoldsPartialLines(t *testing.T) {
	framer := &lineFramer{}
	dec := NewDecoder("test", framer)

	events, err := dec.Feed([]byte(`{"text":"He`))
	if err != nil || len(events) != 0 {
		t.Fatalf("partial line produced %v, %v", events, err)
	}
	if dec.Buffered() == 0 {
		t.Fatal("expected the fragment to stay buffered")
	}

	events, err = dec.Feed([]byte("llo\"}\r\n\n{\"text\":\" world\"}\n{\"done\":true}\n{\"text\":\"ignored\"}\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if got := deltas(events); got != "Hello world|" {
		t.Fatalf("unexpected events %q", got)
	}
	if !dec.Finished() {
		t.Fatal("expected decoder to be finished")
	}

	more, err := dec.Feed([]byte("{\"text\":\"late\"}\n"))
	if err != nil || len(more) != 0 {
		t.Fatalf("input after finished must be ignored, got %v %v", more, err)
	}
	for _, line := range framer.lines {
		if strings.Contains(line, "ignored") || strings.HasSuffix(line, "\r") {
			t.Fatalf("framer saw unexpected line %q", line)
		}
	}
}

func TestDecoderEveryByteBoundary(t *testing.T) {
	input := "{\"text\":\"a\"}\n{\"text\":\"b\"}\n{\"done\":true}\n"
	for split := 1; split < len(input); split++ {
		dec := NewDecoder("test", &lineFramer{})
		first, err := dec.Feed([]byte(input[:split]))
		if err != nil {
			t.Fatalf("split %d: first Feed() error = %v", split, err)
		}
		second, err := dec.Feed([]byte(input[split:]))
		if err != nil {
			t.Fatalf("split %d: second Feed() error = %v", split, err)
		}
		if got := deltas(append(first, second...)); got != "ab|" {
			t.Fatalf("split %d: unexpected events %q", split, got)
		}
	}
}

func TestDecoderCloseProcessesResidual(t *testing.T) {
	dec := NewDecoder("test", &lineFramer{})
	if _, err := dec.Feed([]byte(`{"text":"tail"}`)); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	events, err := dec.Close()
	if !errors.Is(err, provider.ErrStreaming) {
		t.Fatalf("expected streaming error for a stream without completion, got %v", err)
	}
	if got := deltas(events); got != "tail" {
		t.Fatalf("residual line not decoded, got %q", got)
	}
}

func TestDecoderCloseCompletesWhenFramerAllows(t *testing.T) {
	dec := NewDecoder("test", &lineFramer{endOnClose: true})
	if _, err := dec.Feed([]byte("{\"text\":\"x\"}\n")); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	events, err := dec.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(events) != 1 || !events[0].IsFinished() {
		t.Fatalf("expected a single finished event, got %v", events)
	}
}

func TestDecoderParseFailureIsStreamingError(t *testing.T) {
	dec := NewDecoder("test", &lineFramer{})
	events, err := dec.Feed([]byte("{\"text\":\"ok\"}\nnot json\n{\"text\":\"never\"}\n"))
	if !errors.Is(err, provider.ErrStreaming) {
		t.Fatalf("expected streaming error, got %v", err)
	}
	if got := deltas(events); got != "ok" {
		t.Fatalf("events before the failure should be kept, got %q", got)
	}
}

func TestSSEData(t *testing.T) {
	tests := []struct {
		line    string
		payload string
		ok      bool
	}{
		{"data: {\"a\":1}", "{\"a\":1}", true},
		{"data:{\"a\":1}", "{\"a\":1}", true},
		{"event: message_stop", "", false},
		{": keep-alive", "", false},
	}
	for _, tt := range tests {
		payload, ok := SSEData([]byte(tt.line))
		if ok != tt.ok || string(payload) != tt.payload {
			t.Errorf("SSEData(%q) = %q, %v; want %q, %v", tt.line, payload, ok, tt.payload, tt.ok)
		}
	}
}

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func TestReaderDeliversFinishedThenEOF(t *testing.T) {
	body := &closeTracker{Reader: iotest.OneByteReader(strings.NewReader("{\"text\":\"a\"}\n{\"text\":\"b\"}\n{\"done\":true}\n"))}

	var finishes, failures int
	r := NewReader("test", body, &lineFramer{},
		OnFinish(func(models.StreamEvent) { finishes++ }),
		OnError(func(error) { failures++ }),
	)

	var events []models.StreamEvent
	for {
		ev, err := r.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		events = append(events, ev)
	}
	if got := deltas(events); got != "ab|" {
		t.Fatalf("unexpected events %q", got)
	}
	if _, err := r.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after finished, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if finishes != 1 || failures != 0 || body.closed != 1 {
		t.Fatalf("finishes=%d failures=%d closed=%d", finishes, failures, body.closed)
	}
}

func TestReaderTransportErrorIsTerminal(t *testing.T) {
	boom := errors.New("connection reset")
	body := &closeTracker{Reader: io.MultiReader(strings.NewReader("{\"text\":\"a\"}\n"), iotest.ErrReader(boom))}

	var failures int
	r := NewReader("test", body, &lineFramer{}, OnError(func(error) { failures++ }))

	if ev, err := r.Recv(); err != nil || ev.Delta != "a" {
		t.Fatalf("expected first chunk, got %+v %v", ev, err)
	}
	_, err := r.Recv()
	if !errors.Is(err, provider.ErrNetwork) || !errors.Is(err, boom) {
		t.Fatalf("expected network error wrapping the cause, got %v", err)
	}
	if _, again := r.Recv(); again != err {
		t.Fatalf("error should be sticky, got %v", again)
	}
	_ = r.Close()
	if failures != 1 {
		t.Fatalf("expected exactly one failure callback, got %d", failures)
	}
}

func TestReaderCloseBeforeCompletionCountsAsFailure(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("{\"text\":\"a\"}\n{\"done\":true}\n")}
	var failures int
	r := NewReader("test", body, &lineFramer{}, OnError(func(error) { failures++ }))

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = r.Close()
	if failures != 1 || body.closed != 1 {
		t.Fatalf("failures=%d closed=%d", failures, body.closed)
	}
}
