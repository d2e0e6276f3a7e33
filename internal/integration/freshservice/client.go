package freshservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"invoicesys/internal/core/config"
	"invoicesys/internal/domain"
)

const maxBody = 8 << 20

// Config 显式传入，不使用包级可变状态
type Config struct {
	Domain  string
	APIKey  string
	BaseURL string // 为空时用 https://<Domain>/api/v2
	Timeout time.Duration
	// RPS 为 0 表示不限速
	RPS float64
}

func ConfigFrom(c config.Freshservice) Config {
	return Config{
		Domain:  c.Domain,
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Timeout: time.Duration(c.TimeoutSec) * time.Second,
		RPS:     c.RPS,
	}
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + c.Domain + "/api/v2"
}

// Configured 未配置域名时不发请求
func (c Config) Configured() bool {
	return (c.Domain != "" || c.BaseURL != "") && c.APIKey != ""
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.Named("freshservice"),
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return c
}

// ListResult 列表接口的结果；Data 保留原始 JSON
type ListResult struct {
	Data []json.RawMessage `json:"data"`
	Meta json.RawMessage   `json:"meta"`
}

func (c *Client) PurchaseOrders(ctx context.Context, params url.Values) (*ListResult, error) {
	return c.list(ctx, "purchase_orders", "purchase_orders", params)
}

func (c *Client) Tickets(ctx context.Context, params url.Values) (*ListResult, error) {
	return c.list(ctx, "tickets", "tickets", params)
}

func (c *Client) Assets(ctx context.Context, params url.Values) (*ListResult, error) {
	return c.list(ctx, "assets", "assets", params)
}

func (c *Client) Contracts(ctx context.Context, params url.Values) (*ListResult, error) {
	return c.list(ctx, "contracts", "contracts", params)
}

func (c *Client) Vendors(ctx context.Context, params url.Values) (*ListResult, error) {
	return c.list(ctx, "vendors", "vendors", params)
}

func (c *Client) PurchaseOrderByID(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.get(ctx, "purchase_orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	po := gjson.GetBytes(body, "purchase_order")
	if !po.IsObject() {
		return nil, &domain.Error{Kind: domain.ErrExternal, Msg: "purchase_order missing in response"}
	}
	return json.RawMessage(po.Raw), nil
}

// TestConnection 只读一条工单，不改任何状态
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	if _, err := c.get(ctx, "tickets", url.Values{"per_page": {"1"}}); err != nil {
		return false, domain.Message(err)
	}
	return true, "Connection successful"
}

func (c *Client) list(ctx context.Context, endpoint, key string, params url.Values) (*ListResult, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	res := &ListResult{Data: []json.RawMessage{}, Meta: json.RawMessage("{}")}
	gjson.GetBytes(body, key).ForEach(func(_, v gjson.Result) bool {
		res.Data = append(res.Data, json.RawMessage(v.Raw))
		return true
	})
	if m := gjson.GetBytes(body, "meta"); m.IsObject() {
		res.Meta = json.RawMessage(m.Raw)
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if !c.cfg.Configured() {
		return nil, &domain.Error{Kind: domain.ErrExternalUnavailable, Msg: "Freshservice is not configured"}
	}
	label := strings.SplitN(endpoint, "/", 2)[0]
	u := c.cfg.baseURL() + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, unavailable(label, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, "X")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		requests.WithLabelValues(label, "unavailable").Inc()
		return nil, unavailable(label, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		requests.WithLabelValues(label, "unavailable").Inc()
		return nil, unavailable(label, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = fmt.Sprintf("API Error: %d", resp.StatusCode)
		}
		c.log.Warn("non-2xx response",
			zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode), zap.String("message", msg))
		requests.WithLabelValues(label, "error").Inc()
		return nil, &domain.Error{Kind: domain.ErrExternal, Msg: msg}
	}
	if !gjson.ValidBytes(body) {
		requests.WithLabelValues(label, "error").Inc()
		return nil, &domain.Error{Kind: domain.ErrExternal, Msg: "invalid JSON from Freshservice"}
	}
	requests.WithLabelValues(label, "ok").Inc()
	return body, nil
}

func unavailable(endpoint string, err error) error {
	msg := "Freshservice unavailable"
	var ue *url.Error
	if (errors.As(err, &ue) && ue.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		msg = "Freshservice request timed out"
	}
	return fmt.Errorf("%s: %w: %w", endpoint, &domain.Error{Kind: domain.ErrExternalUnavailable, Msg: msg}, err)
}
