package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/config"
	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/signer"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.ilifesmart.com/app"
	EnglishLang    = "en"
	systemVer      = "1.0"

	requestTimeout = 10 * time.Second
)

// Client issues signed request/response calls against the vendor API. It
// is stateless apart from the session tokens captured by Login and Auth.
type Client struct {
	cfg        *config.LifeSmartConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	token     string // short-lived login token, only used by do_auth
	userID    string
	userToken string

	now func() int64
}

type Option func(*Client)

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithNow overrides the timestamp source, used by tests.
func WithNow(now func() int64) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(cfg *config.LifeSmartConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     zap.L(),
		now:        func() int64 { return time.Now().Unix() },
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Credentials returns the signing credentials for the current session.
// Valid only after Login and Auth have both succeeded.
func (c *Client) Credentials() signer.Credentials {
	return signer.Credentials{
		UserID:    c.userID,
		UserToken: c.userToken,
		AppKey:    c.cfg.AppKey,
		AppToken:  c.cfg.AppToken,
	}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &TransportError{Op: path, Err: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &TransportError{Op: path, Err: err}
	}
	return nil
}

// signedRequest builds the body for one api/irapi call, signing the
// method-specific params in their documented order.
func (c *Client) signedRequest(method string, sigParams []signer.Param, params any) apiRequest {
	tick := c.now()
	return apiRequest{
		ID:     1,
		Method: method,
		Params: params,
		System: System{
			Ver:    systemVer,
			Lang:   EnglishLang,
			UserID: c.userID,
			AppKey: c.cfg.AppKey,
			Time:   tick,
			Sign:   signer.Sign(method, sigParams, c.Credentials(), tick),
		},
	}
}

// Login exchanges username/password for the short-lived token. Callers
// retry exactly once before declaring setup failed.
func (c *Client) Login(ctx context.Context) error {
	const path = "/auth.login"
	var res authResponse
	err := c.post(ctx, path, map[string]string{
		"uid":    c.cfg.Username,
		"pwd":    c.cfg.Password,
		"appkey": c.cfg.AppKey,
	}, &res)
	if err != nil {
		return err
	}
	if !res.success() {
		return &AuthError{Op: path, Code: string(res.Code), Message: res.Message}
	}
	c.token = res.Token
	c.userID = res.UserID
	c.logger.Debug("login succeeded", zap.String("userid", c.userID))
	return nil
}

// Auth exchanges the login token for the long-lived usertoken used to sign
// every subsequent request.
func (c *Client) Auth(ctx context.Context) error {
	const path = "/auth.do_auth"
	var res authResponse
	err := c.post(ctx, path, map[string]string{
		"userid": c.userID,
		"token":  c.token,
		"appkey": c.cfg.AppKey,
		"rgn":    "cn",
	}, &res)
	if err != nil {
		return err
	}
	if !res.success() {
		return &AuthError{Op: path, Code: string(res.Code), Message: res.Message}
	}
	c.userToken = res.UserToken
	return nil
}

// GetAllDevices enumerates every device on the account.
func (c *Client) GetAllDevices(ctx context.Context) ([]model.Device, error) {
	const path = "/api.EpGetAll"
	var res apiResponse[[]model.Device]
	if err := c.post(ctx, path, c.signedRequest("EpGetAll", nil, nil), &res); err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, &APIError{Op: path, Code: res.Code}
	}
	return res.Message, nil
}

// GetChannels fetches the current channel snapshot for one device.
func (c *Client) GetChannels(ctx context.Context, agt, me string) (map[string]model.Channel, error) {
	const path = "/api.EpGet"
	req := c.signedRequest("EpGet",
		[]signer.Param{signer.P("agt", agt), signer.P("me", me)},
		epGetParams{Agt: agt, Me: me})
	var res apiResponse[epGetMessage]
	if err := c.post(ctx, path, req, &res); err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, &APIError{Op: path, Code: res.Code}
	}
	channels := make(map[string]model.Channel, len(res.Message.Data))
	for idx, ch := range res.Message.Data {
		channels[idx] = model.Channel{Idx: idx, Type: ch.Type, Val: ch.Val, V: ch.V, Ts: ch.Ts}
	}
	return channels, nil
}

// SetChannel writes one channel value and returns the vendor result code.
func (c *Client) SetChannel(ctx context.Context, agt, me, idx, typeCode string, val int64) (int, error) {
	const path = "/api.EpSet"
	req := c.signedRequest("EpSet",
		[]signer.Param{
			signer.P("agt", agt),
			signer.P("idx", idx),
			signer.P("me", me),
			signer.P("type", typeCode),
			signer.P("val", fmt.Sprintf("%d", val)),
		},
		epSetParams{Agt: agt, Me: me, Idx: idx, Type: typeCode, Val: val})
	var res apiResponse[json.RawMessage]
	if err := c.post(ctx, path, req, &res); err != nil {
		return -1, err
	}
	return res.Code, nil
}

// SendKeys fires IR key codes through a spot controller.
func (c *Client) SendKeys(ctx context.Context, p SendKeysParams) error {
	const path = "/irapi.SendKeys"
	req := c.signedRequest("SendKeys",
		[]signer.Param{
			signer.P("agt", p.Agt),
			signer.P("ai", p.AI),
			signer.P("brand", p.Brand),
			signer.P("category", p.Category),
			signer.P("keys", p.Keys),
			signer.P("me", p.Me),
		}, p)
	var res apiResponse[json.RawMessage]
	if err := c.post(ctx, path, req, &res); err != nil {
		return err
	}
	if res.Code != 0 {
		return &APIError{Op: path, Code: res.Code}
	}
	return nil
}

// SendACKeys fires an air-conditioner IR command.
func (c *Client) SendACKeys(ctx context.Context, p SendACKeysParams) error {
	const path = "/irapi.SendACKeys"
	req := c.signedRequest("SendACKeys",
		[]signer.Param{
			signer.P("agt", p.Agt),
			signer.P("ai", p.AI),
			signer.P("brand", p.Brand),
			signer.P("category", p.Category),
			signer.P("keys", p.Keys),
			signer.P("me", p.Me),
			signer.P("mode", fmt.Sprintf("%d", p.Mode)),
			signer.P("power", fmt.Sprintf("%d", p.Power)),
			signer.P("swing", fmt.Sprintf("%d", p.Swing)),
			signer.P("temp", fmt.Sprintf("%d", p.Temp)),
			signer.P("wind", fmt.Sprintf("%d", p.Wind)),
		}, p)
	var res apiResponse[json.RawMessage]
	if err := c.post(ctx, path, req, &res); err != nil {
		return err
	}
	if res.Code != 0 {
		return &APIError{Op: path, Code: res.Code}
	}
	return nil
}

// GetRemoteList returns the IR remotes configured on a gateway, keyed by ai.
func (c *Client) GetRemoteList(ctx context.Context, agt string) (map[string]Remote, error) {
	const path = "/irapi.GetRemoteList"
	req := c.signedRequest("GetRemoteList",
		[]signer.Param{signer.P("agt", agt)},
		remoteListParams{Agt: agt})
	var res apiResponse[map[string]Remote]
	if err := c.post(ctx, path, req, &res); err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, &APIError{Op: path, Code: res.Code}
	}
	return res.Message, nil
}

// GetRemote returns the key codes of one IR remote.
func (c *Client) GetRemote(ctx context.Context, agt, ai string) (map[string]json.RawMessage, error) {
	const path = "/irapi.GetRemote"
	req := c.signedRequest("GetRemote",
		[]signer.Param{signer.P("agt", agt), signer.P("ai", ai), signer.P("needKeys", "2")},
		remoteParams{Agt: agt, AI: ai, NeedKeys: 2})
	var res apiResponse[remoteCodesMessage]
	if err := c.post(ctx, path, req, &res); err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, &APIError{Op: path, Code: res.Code}
	}
	return res.Message.Codes, nil
}
