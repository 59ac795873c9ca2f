// Package command encodes entity-level actions into the vendor's channel
// write protocol. Each builder picks the opcode and channel for the device
// type and delegates the signed call to the REST client.
package command

import (
	"context"
	"fmt"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/rest"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	opOn       = "0x81"
	opOff      = "0x80"
	opColor    = "0xff"
	opSetValue = "0xCE"
	opSetTemp  = "0x88"
)

// API is the slice of the REST client the encoder writes through.
type API interface {
	SetChannel(ctx context.Context, agt, me, idx, typeCode string, val int64) (int, error)
	SendKeys(ctx context.Context, p rest.SendKeysParams) error
	SendACKeys(ctx context.Context, p rest.SendACKeysParams) error
}

type Encoder struct {
	api    API
	logger *zap.Logger
}

func New(api API) *Encoder {
	return &Encoder{
		api:    api,
		logger: zap.L(),
	}
}

// set issues one channel write and turns a non-zero device code into an
// error so callers never have to look at the raw code.
func (e *Encoder) set(ctx context.Context, agt, me, idx, typeCode string, val int64) error {
	code, err := e.api.SetChannel(ctx, agt, me, idx, typeCode, val)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("set channel %s on %s: device returned code %d", idx, me, code)
	}
	return nil
}

func (e *Encoder) TurnOn(ctx context.Context, agt, me, idx string) error {
	return e.set(ctx, agt, me, idx, opOn, 1)
}

func (e *Encoder) TurnOff(ctx context.Context, agt, me, idx string) error {
	return e.set(ctx, agt, me, idx, opOff, 0)
}

// TurnOnLight turns a light channel on, optionally with a packed RGB
// colour. A nil colour is a plain power-on.
func (e *Encoder) TurnOnLight(ctx context.Context, agt, me, idx string, rgb *int64) error {
	if rgb != nil {
		return e.set(ctx, agt, me, idx, opColor, *rgb)
	}
	return e.set(ctx, agt, me, idx, opOn, 1)
}

// coverChannel maps a cover action onto the channel the hardware expects;
// window units use dedicated OP/CL/ST channels, motor units multiplex P1/P3/P2.
func coverChannel(devType, winIdx, motorIdx string) string {
	if devType == "SL_SW_WIN" {
		return winIdx
	}
	return motorIdx
}

func (e *Encoder) OpenCover(ctx context.Context, devType, agt, me string) error {
	return e.set(ctx, agt, me, coverChannel(devType, "OP", "P1"), opOn, 1)
}

func (e *Encoder) CloseCover(ctx context.Context, devType, agt, me string) error {
	return e.set(ctx, agt, me, coverChannel(devType, "CL", "P3"), opOn, 1)
}

func (e *Encoder) StopCover(ctx context.Context, devType, agt, me string) error {
	return e.set(ctx, agt, me, coverChannel(devType, "ST", "P2"), opOn, 1)
}

func (e *Encoder) SetCoverPosition(ctx context.Context, devType, agt, me string, position int) error {
	// SL_SW_WIN has no position motor; the cloud accepts the P2 write but
	// the device ignores it, so refuse instead of passing it through
	if devType == "SL_SW_WIN" {
		return fmt.Errorf("device type %s does not support positioning", devType)
	}
	if position < 0 || position > 100 {
		return fmt.Errorf("cover position %d out of range", position)
	}
	return e.set(ctx, agt, me, "P2", opSetValue, int64(position))
}

// SetTemperature writes a target temperature in tenths of a degree.
func (e *Encoder) SetTemperature(ctx context.Context, devType, agt, me string, degrees float64) error {
	idx := "P3"
	if lo.Contains(model.AirTypes, devType) {
		idx = "tT"
	}
	return e.set(ctx, agt, me, idx, opSetTemp, int64(degrees*10))
}

func (e *Encoder) SetFanMode(ctx context.Context, agt, me string, mode model.FanMode) error {
	speed, ok := model.FanSpeeds[mode]
	if !ok {
		return fmt.Errorf("unknown fan mode %q", mode)
	}
	return e.set(ctx, agt, me, "F", opSetValue, int64(speed))
}

// SetHVACMode drives the power channel and, for air units, the MODE
// selector. current is the mode the entity is in right now; air units must
// be powered on before MODE accepts a write.
func (e *Encoder) SetHVACMode(ctx context.Context, devType, agt, me string, mode, current model.HVACMode) error {
	if lo.Contains(model.AirTypes, devType) {
		if mode == model.HVACOff {
			return e.set(ctx, agt, me, "O", opOff, 0)
		}
		if current == model.HVACOff {
			if err := e.set(ctx, agt, me, "O", opOn, 1); err != nil {
				return err
			}
		}
		index := lo.IndexOf(model.HVACModes, mode)
		if index < 0 {
			return fmt.Errorf("unknown hvac mode %q", mode)
		}
		return e.set(ctx, agt, me, "MODE", opSetValue, int64(index))
	}

	// thermostats only have heat on/off
	if mode == model.HVACOff {
		if err := e.set(ctx, agt, me, "P1", opOff, 0); err != nil {
			return err
		}
		return e.set(ctx, agt, me, "P2", opOff, 0)
	}
	return e.set(ctx, agt, me, "P1", opOn, 1)
}

// SendIRKeys forwards an infrared key sequence through the hub.
func (e *Encoder) SendIRKeys(ctx context.Context, p rest.SendKeysParams) error {
	e.logger.Debug("sending ir keys", zap.String("me", p.Me), zap.String("keys", p.Keys))
	return e.api.SendKeys(ctx, p)
}

// SendACKeys forwards an air-conditioner key set with its full state tuple.
func (e *Encoder) SendACKeys(ctx context.Context, p rest.SendACKeysParams) error {
	e.logger.Debug("sending ac keys", zap.String("me", p.Me), zap.Int("mode", p.Mode))
	return e.api.SendACKeys(ctx, p)
}
