package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"cryptomon/internal/models"
)

const defaultBaseURL = "https://www.okx.com"

// restClient serves exchange calls over the public REST API.
type restClient struct {
	binding *models.ExchangeBinding
	baseURL string
	http    *http.Client
}

// NewRESTClient builds the polling driver for a binding. The base_url option
// points it at another OKX-compatible endpoint or a test server.
func NewRESTClient(binding *models.ExchangeBinding) Client {
	return &restClient{
		binding: binding,
		baseURL: binding.Option("base_url", defaultBaseURL),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *restClient) Name() string { return c.binding.Name }

func (c *restClient) Close() error { return nil }

func (c *restClient) Call(ctx context.Context, function string, args []any, kwargs map[string]any) (any, error) {
	switch function {
	case "fetch_ticker":
		return c.fetchTicker(ctx, args, kwargs)
	case "fetch_order_book":
		return c.fetchOrderBook(ctx, args, kwargs)
	default:
		return nil, &UnknownFunctionError{Exchange: c.binding.Name, Function: function}
	}
}

func (c *restClient) fetchTicker(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	instID, err := symbolArg(args, kwargs)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code string      `json:"code"`
		Msg  string      `json:"msg"`
		Data []okxTicker `json:"data"`
	}
	if err := c.get(ctx, "/api/v5/market/ticker?instId="+url.QueryEscape(instID), &payload); err != nil {
		return nil, err
	}
	if payload.Code != "0" {
		return nil, errors.Errorf("%s error %s: %s", c.binding.Name, payload.Code, payload.Msg)
	}
	if len(payload.Data) == 0 {
		return nil, errors.Errorf("ticker %s not found", instID)
	}
	return payload.Data[0].asMap(), nil
}

func (c *restClient) fetchOrderBook(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	instID, err := symbolArg(args, kwargs)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code string         `json:"code"`
		Msg  string         `json:"msg"`
		Data []okxOrderBook `json:"data"`
	}
	if err := c.get(ctx, "/api/v5/market/books?sz=20&instId="+url.QueryEscape(instID), &payload); err != nil {
		return nil, err
	}
	if payload.Code != "0" {
		return nil, errors.Errorf("%s error %s: %s", c.binding.Name, payload.Code, payload.Msg)
	}
	if len(payload.Data) == 0 {
		return nil, errors.Errorf("order book %s not found", instID)
	}
	return payload.Data[0].asMap(instID), nil
}

func (c *restClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
