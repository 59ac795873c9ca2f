// Package push owns the persistent websocket to the vendor cloud: it
// authenticates on every (re)connect, decodes inbound event frames and
// feeds them to the normalizer in arrival order.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/config"
	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/normalize"
	"github.com/anicoll/lifesmart-integration/internal/pkg/rest"
	"github.com/anicoll/lifesmart-integration/internal/pkg/signer"
	"github.com/anicoll/lifesmart-integration/pkg/sockets"
	"go.uber.org/zap"
)

const DefaultPushURL = "wss://api.ilifesmart.com:8443/wsapp/"

// reconnectDelay is fixed; the vendor tolerates tight reconnects poorly
// and there is nothing to gain from exponential growth here.
const reconnectDelay = 10 * time.Second

const eventFrameType = "io"

const pingIntervalSecs = 30

type normalizer interface {
	Process(ctx context.Context, ev model.RawEvent) error
}

type credentialSource interface {
	Credentials() signer.Credentials
}

// authFrame mirrors the REST request envelope minus params; the socket
// handshake reuses the same signed system block.
type authFrame struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	System rest.System `json:"system"`
}

type Manager struct {
	cfg     *config.LifeSmartConfig
	creds   credentialSource
	norm    normalizer
	errChan chan error
	logger  *zap.Logger
	newConn func(opts ...func(*sockets.Conn)) sockets.Connection
	now     func() int64
	delay   time.Duration
}

type Option func(*Manager)

// WithConnFactory swaps the websocket constructor, used by tests.
func WithConnFactory(f func(opts ...func(*sockets.Conn)) sockets.Connection) Option {
	return func(m *Manager) {
		m.newConn = f
	}
}

func WithNow(now func() int64) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.delay = d
	}
}

func New(cfg *config.LifeSmartConfig, creds credentialSource, norm normalizer, errChan chan error, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		creds:   creds,
		norm:    norm,
		errChan: errChan,
		logger:  zap.L(),
		newConn: sockets.New,
		now:     func() int64 { return time.Now().Unix() },
		delay:   reconnectDelay,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) url() string {
	if m.cfg.PushURL != "" {
		return m.cfg.PushURL
	}
	return DefaultPushURL
}

// Run keeps one live connection until ctx is cancelled. Every drop waits
// the fixed delay and dials again; dial failures count as drops.
func (m *Manager) Run(ctx context.Context) error {
	for {
		dropped := make(chan struct{})
		conn, err := m.connect(ctx, dropped)
		if err != nil {
			m.logger.Error("push connect failed", zap.String("url", m.url()), zap.Error(err))
		} else {
			select {
			case <-ctx.Done():
				conn.Close()
				return nil
			case <-dropped:
				conn.Close()
				m.logger.Info("push connection dropped, reconnecting", zap.Duration("delay", m.delay))
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.delay):
		}
	}
}

func (m *Manager) connect(ctx context.Context, dropped chan struct{}) (sockets.Connection, error) {
	var droppedOnce sync.Once
	socket := m.newConn(
		sockets.WithPingIntervalSec(pingIntervalSecs),
		sockets.WithPingMsg([]byte("ping")),
		sockets.OnConnected(m.onConnected),
		sockets.OnMessage(func(data []byte, _ sockets.Connection) { m.onMessage(ctx, data) }),
		sockets.OnError(func(err error) {
			m.logger.Warn("push socket error", zap.Error(err))
			droppedOnce.Do(func() { close(dropped) })
		}),
	)
	if err := socket.Dial(ctx, m.url(), ""); err != nil {
		return nil, err
	}
	return socket, nil
}

// onConnected sends the signed WbAuth handshake; events before a successful
// handshake never arrive, the vendor holds the stream until it passes.
func (m *Manager) onConnected(c sockets.Connection) {
	data, err := m.authRequest()
	if err != nil {
		m.sendIfErr(err)
		return
	}
	m.logger.Debug("sending push auth handshake")
	if err := c.Send(sockets.Msg{Body: data}); err != nil {
		m.logger.Warn("push auth send failed", zap.Error(err))
	}
}

func (m *Manager) authRequest() ([]byte, error) {
	creds := m.creds.Credentials()
	tick := m.now()
	return json.Marshal(authFrame{
		ID:     1,
		Method: "WbAuth",
		System: rest.System{
			Ver:    "1.0",
			Lang:   rest.EnglishLang,
			UserID: creds.UserID,
			AppKey: creds.AppKey,
			Time:   tick,
			Sign:   signer.Sign("WbAuth", nil, creds, tick),
		},
	})
}

func (m *Manager) onMessage(ctx context.Context, data []byte) {
	var frame model.PushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.logger.Debug("dropping non-json push frame", zap.ByteString("frame", data))
		return
	}
	if frame.Type != eventFrameType {
		m.logger.Debug("dropping push frame", zap.String("type", frame.Type))
		return
	}
	ev, err := frame.Event()
	if err != nil {
		m.logger.Debug("dropping malformed event frame", zap.Error(err))
		return
	}
	if err := m.norm.Process(ctx, ev); err != nil {
		var decodeError *normalize.DecodeError
		if errors.As(err, &decodeError) {
			m.logger.Debug("dropping undecodable event", zap.Error(err))
			return
		}
		m.sendIfErr(err)
	}
}

func (m *Manager) sendIfErr(err error) {
	if err != nil {
		m.errChan <- err
	}
}
