package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"crosspost/domain/model"
)

// Client is the shared HTTP executor for the platform adapters. It owns
// transport-level error mapping so every adapter classifies remote failures
// the same way.
type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Do executes a raw request and returns the response. Transport failures are
// classified as transient.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassTransientNetwork, "request to %s failed: %v", req.URL.Host, err)
	}
	return resp, nil
}

// DoJSON executes a request, classifies non-2xx statuses, and decodes the
// body into out when provided.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return model.NewPublishError(model.ErrClassMalformedResponse, "building request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.NewPublishError(model.ErrClassTransientNetwork, "reading response from %s: %v", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Classify(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return model.NewPublishError(model.ErrClassMalformedResponse, "decoding response from %s: %v (body: %s)", url, err, Snippet(raw))
		}
	}
	return nil
}

// PostJSON marshals payload and executes DoJSON with a JSON content type and
// bearer token.
func (c *Client) PostJSON(ctx context.Context, url, accessToken string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.NewPublishError(model.ErrClassMalformedResponse, "encoding request: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if accessToken != "" {
		headers["Authorization"] = "Bearer " + accessToken
	}
	return c.DoJSON(ctx, http.MethodPost, url, headers, bytes.NewReader(body), out)
}

// PostForm executes a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, url string, form string, headers map[string]string, out interface{}) error {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	return c.DoJSON(ctx, http.MethodPost, url, headers, strings.NewReader(form), out)
}

// Classify maps a remote HTTP status onto the common error taxonomy:
// 404 RemoteNotFound, 401 AuthExpired, 403 PermissionDenied, 429 RateLimited,
// 5xx TransientNetwork, anything else MalformedResponse with the raw body
// preserved for diagnosis.
func Classify(status int, body []byte) *model.PublishError {
	switch {
	case status == http.StatusNotFound:
		return model.NewPublishError(model.ErrClassRemoteNotFound, "resource not found (404): %s", Snippet(body))
	case status == http.StatusUnauthorized:
		return model.NewPublishError(model.ErrClassAuthExpired, "token rejected (401): %s", Snippet(body))
	case status == http.StatusForbidden:
		return model.NewPublishError(model.ErrClassPermissionDenied, "permission denied (403): %s", Snippet(body))
	case status == http.StatusTooManyRequests:
		return model.NewPublishError(model.ErrClassRateLimited, "rate limited (429): %s", Snippet(body))
	case status >= 500:
		return model.NewPublishError(model.ErrClassTransientNetwork, "remote error (%d): %s", status, Snippet(body))
	default:
		return model.NewPublishError(model.ErrClassMalformedResponse, "unexpected status %d: %s", status, Snippet(body))
	}
}

// RemovalResult treats a missing remote resource as success: the resource is
// already gone, so removal is idempotent under re-invocation and out-of-band
// deletion.
func RemovalResult(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := model.AsPublishError(err); ok && pe.Class == model.ErrClassRemoteNotFound {
		return nil
	}
	return err
}

// Snippet truncates a remote body for log and error messages.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		return s[:509] + "..."
	}
	return s
}

// ErrorBody decodes the common {"error": {"message": ...}} shape many
// platforms use; falls back to the raw snippet.
func ErrorBody(body []byte) string {
	var wrapper struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	return Snippet(body)
}
