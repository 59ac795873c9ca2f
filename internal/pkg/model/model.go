package model

import (
	"errors"
	"fmt"
)

// Channel is one controllable/observable sub-channel on a device. The low
// bit of Type encodes on/off polarity (odd means active); Val carries the
// integer reading and V the float reading where the channel has one.
type Channel struct {
	Idx  string   `json:"idx"`
	Type int      `json:"type"`
	Val  int64    `json:"val"`
	V    *float64 `json:"v,omitempty"`
	Ts   int64    `json:"ts,omitempty"`
}

// FloatValue returns V when the channel carries a float reading, falling
// back to Val.
func (c Channel) FloatValue() float64 {
	if c.V != nil {
		return *c.V
	}
	return float64(c.Val)
}

// Device is the vendor identity plus its channels, as returned by
// enumeration. Identity fields are immutable for the session.
type Device struct {
	Agt     string             `json:"agt"`
	Me      string             `json:"me"`
	DevType string             `json:"devtype"`
	Name    string             `json:"name"`
	Data    map[string]Channel `json:"data"`
}

// RawEvent is one decoded push event. Required fields are validated at
// decode time; V and Ts are optional on the wire.
type RawEvent struct {
	Agt     string
	Me      string
	DevType string
	Idx     string
	Type    int
	Val     int64
	V       *float64
	Ts      int64
}

var ErrMissingField = errors.New("event missing required field")

// rawEventJSON mirrors the msg object of an "io" frame with pointer fields
// so absent keys can be told apart from zero values.
type rawEventJSON struct {
	Agt     *string  `json:"agt"`
	Me      *string  `json:"me"`
	DevType *string  `json:"devtype"`
	Idx     *string  `json:"idx"`
	Type    *int     `json:"type"`
	Val     *int64   `json:"val"`
	V       *float64 `json:"v"`
	Ts      int64    `json:"ts"`
}

// parseRawEvent validates a decoded msg object and converts it to a
// RawEvent, failing fast on any missing required field.
func parseRawEvent(raw rawEventJSON) (RawEvent, error) {
	for name, ptr := range map[string]bool{
		"agt":     raw.Agt != nil,
		"me":      raw.Me != nil,
		"devtype": raw.DevType != nil,
		"idx":     raw.Idx != nil,
		"type":    raw.Type != nil,
		"val":     raw.Val != nil,
	} {
		if !ptr {
			return RawEvent{}, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	return RawEvent{
		Agt:     *raw.Agt,
		Me:      *raw.Me,
		DevType: *raw.DevType,
		Idx:     *raw.Idx,
		Type:    *raw.Type,
		Val:     *raw.Val,
		V:       raw.V,
		Ts:      raw.Ts,
	}, nil
}

// PushFrame is one inbound websocket frame; only Type == "io" frames carry
// device events.
type PushFrame struct {
	Type string       `json:"type"`
	Msg  rawEventJSON `json:"msg"`
}

// Event converts the frame body to a validated RawEvent.
func (f PushFrame) Event() (RawEvent, error) {
	return parseRawEvent(f.Msg)
}

// StateUpdate is one normalized (entity_key, state, attributes) emission
// handed to the registered state sinks.
type StateUpdate struct {
	EntityKey  string
	Platform   Platform
	DeviceName string
	State      any
	Attributes map[string]any
}
