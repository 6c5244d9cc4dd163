package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "genprovider/0.1"
	maxErrorBody    = 64 * 1024
)

// NewJSONRequest marshals payload and builds a request with the common
// headers plus the adapter-specific ones.
func NewJSONRequest(ctx context.Context, method, url string, payload any, headers map[string]string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Do issues req and maps transport failures to NetworkError/TimeoutError.
func Do(client *http.Client, providerName string, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, FromTransport(providerName, err)
	}
	return resp, nil
}

// ReadErrorBody drains at most 64 KiB of an error response.
func ReadErrorBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return body
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// DecodeJSON decodes a success body; failures are ParsingErrors.
func DecodeJSON(providerName string, reader io.Reader, target any) error {
	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return WrapError(KindParsing, providerName, "decode provider response", err)
	}
	return nil
}

// ResponseMetadata returns the metadata attached to every normalized
// response: the caller's request metadata plus a request id.
func ResponseMetadata(requestMetadata map[string]any, providerName string) map[string]any {
	out := make(map[string]any, len(requestMetadata)+2)
	for k, v := range requestMetadata {
		out[k] = v
	}
	if _, ok := out["request_id"]; !ok {
		out["request_id"] = uuid.NewString()
	}
	out["provider"] = providerName
	return out
}

// StatusError converts a non-2xx response into a domain error. extract pulls
// the backend's structured error message out of the body, if it has one.
func StatusError(providerName string, resp *http.Response, extract func(body []byte) string) *Error {
	body := ReadErrorBody(resp)
	var apiMessage string
	if extract != nil {
		apiMessage = extract(body)
	}
	return FromStatus(providerName, resp.StatusCode, body, apiMessage)
}
