package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anicoll/lifesmart-integration/internal/pkg/config"
	"github.com/anicoll/lifesmart-integration/internal/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.LifeSmartConfig{
		BaseURL:  srv.URL,
		Username: "user",
		Password: "pass",
		AppKey:   "ak789",
		AppToken: "at000",
	}
	return New(cfg, WithNow(func() int64 { return 1700000000 }))
}

func TestClient_Login(t *testing.T) {
	tests := map[string]struct {
		response   string
		statusCode int
		wantErr    func(t *testing.T, err error)
		wantUserID string
	}{
		"success": {
			response:   `{"code":"success","token":"tok1","userid":"uid123"}`,
			statusCode: http.StatusOK,
			wantUserID: "uid123",
		},
		"bad credentials": {
			response:   `{"code":10004,"message":"invalid password"}`,
			statusCode: http.StatusOK,
			wantErr: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "10004", authErr.Code)
			},
		},
		"http error": {
			response:   `boom`,
			statusCode: http.StatusBadGateway,
			wantErr: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
			},
		},
		"malformed json": {
			response:   `{"code":`,
			statusCode: http.StatusOK,
			wantErr: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
			},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth.login", r.URL.Path)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "user", body["uid"])
				assert.Equal(t, "ak789", body["appkey"])
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			})
			err := c.Login(context.Background())
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUserID, c.userID)
		})
	}
}

func TestClient_Auth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth.do_auth", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cn", body["rgn"])
		_, _ = w.Write([]byte(`{"code":"success","usertoken":"ut456"}`))
	})
	require.NoError(t, c.Auth(context.Background()))
	assert.Equal(t, "ut456", c.userToken)
}

func TestClient_SetChannel_SignsRequest(t *testing.T) {
	var captured apiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api.EpSet", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	})
	c.userID = "uid123"
	c.userToken = "ut456"

	code, err := c.SetChannel(context.Background(), "A3EEMCAG", "2d11", "L1", "0x81", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, "EpSet", captured.Method)
	assert.Equal(t, "uid123", captured.System.UserID)
	assert.Equal(t, int64(1700000000), captured.System.Time)
	// Must match the vendor's canonicalization byte for byte.
	want := signer.Sign("EpSet", []signer.Param{
		signer.P("agt", "A3EEMCAG"),
		signer.P("idx", "L1"),
		signer.P("me", "2d11"),
		signer.P("type", "0x81"),
		signer.P("val", "1"),
	}, c.Credentials(), 1700000000)
	assert.Equal(t, want, captured.System.Sign)
}

func TestClient_GetAllDevices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api.EpGetAll", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"message":[
			{"agt":"A3EE_MCAG","me":"2d11","devtype":"SL_SW_IF3","name":"hall switch",
			 "data":{"L1":{"type":129,"val":1},"L2":{"type":128,"val":0}}}
		]}`))
	})
	c.userID = "uid123"
	c.userToken = "ut456"

	devices, err := c.GetAllDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "SL_SW_IF3", devices[0].DevType)
	assert.Equal(t, 129, devices[0].Data["L1"].Type)
}

func TestClient_GetAllDevices_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":10002,"message":[]}`))
	})
	_, err := c.GetAllDevices(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10002, apiErr.Code)
}

func TestClient_GetChannels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api.EpGet", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"message":{"data":{"T":{"type":8,"val":0,"v":23.5}}}}`))
	})
	channels, err := c.GetChannels(context.Background(), "agt", "me")
	require.NoError(t, err)
	require.Contains(t, channels, "T")
	require.NotNil(t, channels["T"].V)
	assert.InDelta(t, 23.5, *channels["T"].V, 0.001)
}

func TestClient_SendACKeys(t *testing.T) {
	var captured apiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/irapi.SendACKeys", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	})
	c.userID = "uid123"
	c.userToken = "ut456"

	err := c.SendACKeys(context.Background(), SendACKeysParams{
		SendKeysParams: SendKeysParams{Agt: "agt", Me: "me", Category: "ac", Brand: "gree", AI: "AI_AC_1", Keys: "power"},
		Power:          1, Mode: 1, Temp: 24, Wind: 2, Swing: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "SendACKeys", captured.Method)
	assert.NotEmpty(t, captured.System.Sign)
}
