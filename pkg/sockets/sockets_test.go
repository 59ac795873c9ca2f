package sockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestConn_DialSendReceive(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	received := make(chan []byte, 1)
	connected := make(chan struct{}, 1)
	c := New(
		OnMessage(func(msg []byte, _ Connection) {
			received <- msg
		}),
		OnConnected(func(_ Connection) {
			connected <- struct{}{}
		}),
	)
	require.NoError(t, c.Dial(context.Background(), wsURL(server), ""))
	defer c.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connected callback never fired")
	}

	require.NoError(t, c.Send(Msg{Body: []byte(`{"hello":1}`)}))
	select {
	case msg := <-received:
		assert.JSONEq(t, `{"hello":1}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestConn_DialFailure(t *testing.T) {
	c := New()
	err := c.Dial(context.Background(), "ws://127.0.0.1:1/nope", "")
	require.Error(t, err)
}

func TestConn_SendAfterClose(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	c := New()
	require.NoError(t, c.Dial(context.Background(), wsURL(server), ""))
	require.NoError(t, c.Close())
	assert.Error(t, c.Send(Msg{Body: []byte("late")}))
}

func TestConn_OnErrorWhenServerDrops(t *testing.T) {
	server := echoServer(t)

	errCh := make(chan error, 1)
	c := New(OnError(func(err error) {
		errCh <- err
	}))
	require.NoError(t, c.Dial(context.Background(), wsURL(server), ""))

	server.CloseClientConnections()
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("error callback never fired")
	}
	c.Close()
}
