package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// HTTPTransport calls the auth endpoints under BaseURL, e.g.
// "http://localhost:3001/api". The session cookie lives in the client's jar.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport with its own cookie jar
func NewHTTPTransport(baseURL string) (*HTTPTransport, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create cookie jar")
	}

	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

type accountEnvelope struct {
	User *Account `json:"user"`
}

type errorEnvelope struct {
	Error    string         `json:"error"`
	TextCode string         `json:"text_code"`
	Metadata map[string]any `json:"metadata"`
}

func (t *HTTPTransport) Me(ctx context.Context) (*Account, error) {
	var out accountEnvelope
	if err := t.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (t *HTTPTransport) Login(ctx context.Context, email, password string) (*Account, error) {
	body := map[string]string{"email": email, "password": password}

	var out accountEnvelope
	if err := t.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (t *HTTPTransport) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	var out accountEnvelope
	if err := t.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (t *HTTPTransport) Logout(ctx context.Context) error {
	return t.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed").
			WithTextCode(TextCodeTransport)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response").
			WithTextCode(TextCodeTransport)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return responseError(res.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response").
			WithTextCode(TextCodeTransport)
	}
	return nil
}

func responseError(status int, payload []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(payload, &env)

	message := env.Error
	if message == "" {
		message = http.StatusText(status)
	}

	err := goerrors.New(message, categoryForStatus(status)).WithCode(status)
	if env.TextCode != "" {
		err = err.WithTextCode(env.TextCode)
	}
	if len(env.Metadata) > 0 {
		err = err.WithMetadata(env.Metadata)
	}
	return err
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case http.StatusBadRequest:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryOperation
	}
}
