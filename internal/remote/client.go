// Package remote talks to the POS backend API. Every call resolves to a typed
// value or an *Error.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// TokenSource supplies the current access token, "" when signed out.
type TokenSource interface {
	Token() string
}

// Config holds the backend location.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client wraps a resty client with the backend's envelope and error rules.
type Client struct {
	http     *resty.Client
	tokens   TokenSource
	validate *validator.Validate
	logger   *zap.Logger
}

// envelope is the shape of every JSON answer: {data, message, pagination}.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *struct {
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

// New creates a Client. tokens may be nil for unauthenticated use.
func New(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:     hc,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// request starts a call carrying ctx and the current token.
func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			r.SetHeader("authorization", tok)
		}
	}
	return r
}

// send executes r and unwraps the envelope, classifying failures.
func (c *Client) send(r *resty.Request, method, path string) (*envelope, error) {
	res, err := r.Execute(method, path)
	if err != nil {
		c.logger.Warn("backend unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, &Error{Kind: KindNetwork, Message: UnknownMessage, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(res.Bytes(), &env)

	if res.IsError() {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = UnknownMessage
		}
		c.logger.Warn("backend rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode()),
			zap.String("message", msg),
		)
		return nil, &Error{Kind: KindServer, Status: res.StatusCode(), Message: msg}
	}
	if decodeErr != nil {
		return nil, c.decodeError(path, res.StatusCode(), decodeErr)
	}
	return &env, nil
}

func (c *Client) decodeError(path string, status int, err error) *Error {
	c.logger.Warn("unexpected backend payload", zap.String("path", path), zap.Int("status", status), zap.Error(err))
	return &Error{Kind: KindDecode, Status: status, Message: UnknownMessage, Err: err}
}

var errNoData = errors.New("response has no data")

// decodeData unmarshals env.Data into out and validates it against its struct tags.
func (c *Client) decodeData(path string, env *envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return c.decodeError(path, http.StatusOK, errNoData)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.decodeError(path, http.StatusOK, err)
	}
	if err := c.check(out); err != nil {
		return c.decodeError(path, http.StatusOK, err)
	}
	return nil
}

// check runs struct validation on a struct or on every element of a slice.
func (c *Client) check(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		return c.validate.Struct(rv.Interface())
	case reflect.Slice:
		if rv.Len() == 0 || reflect.Indirect(rv.Index(0)).Kind() != reflect.Struct {
			return nil
		}
		return c.validate.Var(rv.Interface(), "dive")
	}
	return nil
}
