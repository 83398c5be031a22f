package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jonwraymond/rpcquery/resilience"
)

// HeaderRequestID carries the per-call request id.
const HeaderRequestID = "X-Request-Id"

// headerKind tells the server which procedure type the caller expects.
const headerKind = "X-Rpc-Kind"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// envelope is the JSON body exchanged with the server.
type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result,omitempty"`
	Error *wireError `json:"error,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    struct {
		Code       Code   `json:"code"`
		HTTPStatus int    `json:"httpStatus"`
		Path       string `json:"path,omitempty"`
	} `json:"data"`
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL is the procedure endpoint, e.g. "https://api.example.com/trpc".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Transformer must produce JSON, since payloads are embedded in the
	// envelope. Defaults to JSONTransformer.
	Transformer Transformer

	// Headers supplies credentials per request. Optional.
	Headers HeaderSource

	// Breaker guards the transport. Optional.
	Breaker *resilience.CircuitBreaker
}

// HTTPClient is a Client speaking the JSON envelope protocol over HTTP.
// Queries and subscription polls are GET requests carrying the input in the
// "input" query parameter; mutations are POST requests.
type HTTPClient struct {
	base        string
	http        *http.Client
	transformer Transformer
	headers     HeaderSource
	breaker     *resilience.CircuitBreaker
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rpc: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("rpc: invalid base URL: %w", err)
	}
	c := &HTTPClient{
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		http:        cfg.HTTPClient,
		transformer: cfg.Transformer,
		headers:     cfg.Headers,
		breaker:     cfg.Breaker,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.transformer == nil {
		c.transformer = JSONTransformer{}
	}
	return c, nil
}

func (c *HTTPClient) Transformer() Transformer { return c.transformer }

// Breaker returns the transport circuit breaker, or nil.
func (c *HTTPClient) Breaker() *resilience.CircuitBreaker { return c.breaker }

func (c *HTTPClient) Query(ctx context.Context, path string, input []byte) *Call {
	return c.start(ctx, KindQuery, path, input)
}

func (c *HTTPClient) Mutation(ctx context.Context, path string, input []byte) *Call {
	return c.start(ctx, KindMutation, path, input)
}

func (c *HTTPClient) SubscriptionOnce(ctx context.Context, path string, input []byte) *Call {
	return c.start(ctx, KindSubscription, path, input)
}

func (c *HTTPClient) start(ctx context.Context, kind Kind, path string, input []byte) *Call {
	return Go(ctx, func(ctx context.Context) ([]byte, error) {
		if c.breaker == nil {
			return c.do(ctx, kind, path, input)
		}
		var out []byte
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			out, err = c.do(ctx, kind, path, input)
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, &ClientError{Path: path, Message: "circuit open", Cause: err}
		}
		return out, err
	})
}

func (c *HTTPClient) newRequest(ctx context.Context, kind Kind, path string, input []byte) (*http.Request, error) {
	target := c.base + "/" + url.PathEscape(path)
	var req *http.Request
	var err error
	if kind == KindMutation {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(input))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		if len(input) > 0 {
			target += "?" + url.Values{"input": {string(input)}}.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerKind, string(kind))
	req.Header.Set(HeaderRequestID, uuid.NewString())

	if c.headers != nil {
		h, err := c.headers.Headers(ctx)
		if err != nil {
			return nil, err
		}
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	return req, nil
}

func (c *HTTPClient) do(ctx context.Context, kind Kind, path string, input []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, kind, path, input)
	if err != nil {
		return nil, &ClientError{Path: path, Message: "build request", Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ClientError{Path: path, Message: "transport failure", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ClientError{Path: path, Message: "read response", Cause: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		code := CodeFromHTTPStatus(resp.StatusCode)
		if resp.StatusCode < 300 {
			code = CodeParseError
		}
		return nil, &ClientError{Path: path, Code: code, HTTPStatus: resp.StatusCode, Message: "malformed response body", Cause: err}
	}
	if env.Error != nil {
		ce := &ClientError{
			Path:       env.Error.Data.Path,
			Code:       env.Error.Data.Code,
			HTTPStatus: env.Error.Data.HTTPStatus,
			Message:    env.Error.Message,
		}
		if ce.Path == "" {
			ce.Path = path
		}
		if ce.HTTPStatus == 0 {
			ce.HTTPStatus = resp.StatusCode
		}
		if ce.Code == "" {
			ce.Code = CodeFromHTTPStatus(ce.HTTPStatus)
		}
		return nil, ce
	}
	if env.Result == nil {
		return nil, &ClientError{Path: path, Code: CodeParseError, HTTPStatus: resp.StatusCode, Message: "response has neither result nor error"}
	}
	return env.Result.Data, nil
}

// ServeHTTP exposes the router over the envelope protocol understood by
// HTTPClient. The router context for each call is the *http.Request.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, "/")
	kind := Kind(req.Header.Get(headerKind))

	var input []byte
	switch req.Method {
	case http.MethodGet:
		if kind == "" {
			kind = KindQuery
		}
		input = []byte(req.URL.Query().Get("input"))
	case http.MethodPost:
		if kind == "" {
			kind = KindMutation
		}
		body, err := io.ReadAll(io.LimitReader(req.Body, maxResponseBytes))
		if err != nil {
			writeEnvelopeError(w, NewClientError(path, CodeBadRequest, "read body"))
			return
		}
		input = body
	default:
		writeEnvelopeError(w, NewClientError(path, CodeMethodNotSupported, "unsupported method "+req.Method))
		return
	}

	out, err := r.call(context.WithValue(req.Context(), routerContextKey{}, req), kind, path, input)
	if err != nil {
		ce, ok := AsClientError(err)
		if !ok {
			ce = NewClientError(path, CodeClientClosedRequest, err.Error())
		}
		writeEnvelopeError(w, ce)
		return
	}

	if len(out) == 0 {
		out = null
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]json.RawMessage{"data": out}})
}

func writeEnvelopeError(w http.ResponseWriter, ce *ClientError) {
	var we wireError
	we.Message = ce.Message
	we.Code = ce.Code.JSONRPCCode()
	we.Data.Code = ce.Code
	we.Data.HTTPStatus = ce.Code.HTTPStatus()
	we.Data.Path = ce.Path

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(we.Data.HTTPStatus)
	_ = json.NewEncoder(w).Encode(envelope{Error: &we})
}
