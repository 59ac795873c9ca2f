package rest

import "encoding/json"

// System is the signed block carried by every api/irapi request body.
type System struct {
	Ver    string `json:"ver"`
	Lang   string `json:"lang"`
	UserID string `json:"userid"`
	AppKey string `json:"appkey"`
	Time   int64  `json:"time"`
	Sign   string `json:"sign"`
}

type apiRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	System System `json:"system"`
	Params any    `json:"params,omitempty"`
}

// authResponse covers auth.login and auth.do_auth, whose result code is the
// string "success" rather than the numeric 0 api.* uses.
type authResponse struct {
	Code      json.RawMessage `json:"code"`
	Message   string          `json:"message"`
	Token     string          `json:"token"`
	UserID    string          `json:"userid"`
	UserToken string          `json:"usertoken"`
}

func (r authResponse) success() bool {
	return string(r.Code) == `"success"`
}

type apiResponse[T any] struct {
	ID      int    `json:"id"`
	Code    int    `json:"code"`
	Message T      `json:"message"`
	Error   string `json:"error,omitempty"`
}

type epGetMessage struct {
	Data map[string]channelJSON `json:"data"`
}

type channelJSON struct {
	Type int      `json:"type"`
	Val  int64    `json:"val"`
	V    *float64 `json:"v"`
	Ts   int64    `json:"ts"`
}

type epSetParams struct {
	Agt  string `json:"agt"`
	Me   string `json:"me"`
	Idx  string `json:"idx"`
	Type string `json:"type"`
	Val  int64  `json:"val"`
}

type epGetParams struct {
	Agt string `json:"agt"`
	Me  string `json:"me"`
}

// SendKeysParams is the full tuple for irapi.SendKeys.
type SendKeysParams struct {
	Agt      string `json:"agt"`
	Me       string `json:"me"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	AI       string `json:"ai"`
	Keys     string `json:"keys"`
}

// SendACKeysParams extends SendKeysParams with the air-conditioner fields.
type SendACKeysParams struct {
	SendKeysParams
	Power int `json:"power"`
	Mode  int `json:"mode"`
	Temp  int `json:"temp"`
	Wind  int `json:"wind"`
	Swing int `json:"swing"`
}

type remoteListParams struct {
	Agt string `json:"agt"`
}

type remoteParams struct {
	Agt      string `json:"agt"`
	AI       string `json:"ai"`
	NeedKeys int    `json:"needKeys"`
}

// Remote is one entry of irapi.GetRemoteList.
type Remote struct {
	Category string `json:"category"`
	Brand    string `json:"brand"`
}

type remoteCodesMessage struct {
	Codes map[string]json.RawMessage `json:"codes"`
}
