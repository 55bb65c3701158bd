// Package portal is the REST client of the remote portal backend.  Every
// authenticated call takes the bearer token explicitly; the client holds
// no identity of its own.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

// Client talks to the backend rooted at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// errorBody is the shape of the backend's error answers.
type errorBody struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Conflicts json.RawMessage `json:"conflicts"`
}

func p(parts ...string) string {
	var b strings.Builder
	for _, s := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// send issues the request and returns the response when the backend
// answered 2xx.  The caller closes the body.
func (c *Client) send(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	op := method + " " + path
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: encode body", op)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.WithStack(&TransportError{Op: op, Err: err})
	}
	log.Debugf("portal: %s -> %d", op, resp.StatusCode)
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) != nil {
		return apiErr
	}
	apiErr.Message = eb.Error
	if apiErr.Message == "" {
		apiErr.Message = eb.Message
	}
	if len(eb.Conflicts) > 0 {
		if err := json.Unmarshal(eb.Conflicts, &apiErr.Conflicts); err != nil {
			log.Warnf("portal: unreadable conflicts in %d answer: %v", resp.StatusCode, err)
		}
	}
	return apiErr
}

// do sends the request and decodes a JSON answer into out (when non-nil).
// An empty or "null" body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	resp, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(&TransportError{Op: method + " " + path, Err: err})
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "%s %s: decode answer", method, path)
}

// Download is a streamed backend file.  The caller closes Body.
type Download struct {
	ContentType        string
	ContentDisposition string
	Body               io.ReadCloser
}
