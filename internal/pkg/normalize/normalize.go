// Package normalize is the state-machine core: it classifies raw push
// events by device family and channel, derives the normalized state plus
// attribute delta against the registry cache, and emits the result to the
// state sink.
package normalize

import (
	"context"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/registry"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// statusMarker is the vendor's internal status channel; events for it are
// never device state.
const statusMarker = "s"

const lockTimeLayout = "2006-01-02 15:04:05"

// Sink receives the normalized (entity_key, state, attributes) emissions.
type Sink interface {
	ApplyState(ctx context.Context, update model.StateUpdate) error
}

type handlerFunc func(ctx context.Context, ev model.RawEvent) error

// Normalizer applies events strictly in arrival order; it never suspends
// except inside the sink call.
type Normalizer struct {
	reg      *registry.Registry
	sink     Sink
	logger   *zap.Logger
	handlers map[model.DeviceFamily]handlerFunc
}

func New(reg *registry.Registry, sink Sink) *Normalizer {
	n := &Normalizer{
		reg:    reg,
		sink:   sink,
		logger: zap.L(),
	}
	n.handlers = map[model.DeviceFamily]handlerFunc{
		model.FamilySwitch:       n.handleSwitch,
		model.FamilyBinarySensor: n.handleBinarySensor,
		model.FamilyCover:        n.handleCover,
		model.FamilyEVSensor:     n.handleEVSensor,
		model.FamilyGasSensor:    n.handleGasSensor,
		model.FamilyLight:        n.handleLight,
		model.FamilySpot:         n.handleLight,
		model.FamilyClimate:      n.handleClimate,
		model.FamilyLock:         n.handleLock,
	}
	return n
}

// Process normalizes one event. Unrecognized channels are ignored, not
// errored; a returned *DecodeError means the event was malformed and must
// be dropped by the caller, never escalated.
func (n *Normalizer) Process(ctx context.Context, ev model.RawEvent) error {
	if ev.Idx == statusMarker {
		return nil
	}
	if n.reg.Excluded(ev.Me) {
		n.logger.Debug("excluded device event dropped", zap.String("me", ev.Me))
		return nil
	}
	family, ok := model.ClassifyDevice(ev.DevType)
	if !ok {
		n.logger.Debug("event for unclassified device type",
			zap.String("devtype", ev.DevType), zap.String("me", ev.Me))
		return nil
	}
	return n.handlers[family](ctx, ev)
}

// emit stores the new state and hands the full update to the sink. The
// entity is lazily seeded when the event beat enumeration to it.
func (n *Normalizer) emit(ctx context.Context, ev model.RawEvent, idx string, family model.DeviceFamily, platform model.Platform, state any) error {
	key, known := n.reg.Resolve(ev.DevType, ev.Agt, ev.Me, idx)
	if !known {
		key = n.reg.Seed(ev.DevType, ev.Agt, ev.Me, idx, family, platform)
	}
	n.reg.SetState(key, state)
	snap, _ := n.reg.Snapshot(key)
	return n.sink.ApplyState(ctx, model.StateUpdate{
		EntityKey:  key,
		Platform:   platform,
		DeviceName: snap.Name,
		State:      state,
		Attributes: snap.Attributes,
	})
}

func (n *Normalizer) handleSwitch(ctx context.Context, ev model.RawEvent) error {
	if !lo.Contains(model.SwitchChannels, ev.Idx) {
		// hybrid devices carry backlight/RGB channels next to the relays
		if lo.Contains(model.LightTypes, ev.DevType) && lo.Contains(model.LightChannels, ev.Idx) {
			return n.handleLight(ctx, ev)
		}
		return nil
	}
	return n.emit(ctx, ev, ev.Idx, model.FamilySwitch, model.PlatformSwitch, onOff(ev.Type%2 == 1))
}

func (n *Normalizer) handleLight(ctx context.Context, ev model.RawEvent) error {
	return n.emit(ctx, ev, ev.Idx, model.FamilyLight, model.PlatformLight, onOff(ev.Type%2 == 1))
}

func (n *Normalizer) handleBinarySensor(ctx context.Context, ev model.RawEvent) error {
	// guard/motion hardware exposes numeric side channels next to the
	// binary ones
	if lo.Contains(model.OTSensorTypes, ev.DevType) && lo.Contains(model.OTSensorChannels, ev.Idx) {
		if ev.V == nil {
			return decodeErr(ev.Me, ev.Idx, "numeric side channel without v field")
		}
		return n.emit(ctx, ev, ev.Idx, model.FamilyBinarySensor, model.PlatformSensor, *ev.V)
	}
	if !lo.Contains(model.BinarySensorChannels, ev.Idx) {
		return nil
	}
	active := binarySensorActive(ev.DevType, ev.Val)
	return n.emit(ctx, ev, ev.Idx, model.FamilyBinarySensor, model.PlatformBinarySensor, onOff(active))
}

func (n *Normalizer) handleCover(ctx context.Context, ev model.RawEvent) error {
	if !lo.Contains(model.CoverChannels, ev.Idx) {
		return nil
	}
	key, known := n.reg.Resolve(ev.DevType, ev.Agt, ev.Me, "")
	if !known {
		key = n.reg.Seed(ev.DevType, ev.Agt, ev.Me, "", model.FamilyCover, model.PlatformCover)
	}

	// the vendor only signals fully open or fully closed
	position := 0
	if ev.Val != 0 {
		position = 100
	}
	n.reg.UpdateAttributes(key, map[string]any{"current_position": position})

	state, _ := n.reg.State(key)
	switch {
	case ev.Type%2 == 0 && ev.Val == 0:
		state = "closed"
	case ev.Type%2 == 1 && ev.Val == 1:
		state = "open"
		// anything else is ambiguous, state stays as cached
	}
	n.reg.SetState(key, state)
	snap, _ := n.reg.Snapshot(key)
	return n.sink.ApplyState(ctx, model.StateUpdate{
		EntityKey:  key,
		Platform:   model.PlatformCover,
		DeviceName: snap.Name,
		State:      state,
		Attributes: snap.Attributes,
	})
}

func (n *Normalizer) handleEVSensor(ctx context.Context, ev model.RawEvent) error {
	if ev.V == nil {
		return decodeErr(ev.Me, ev.Idx, "environmental sensor event without v field")
	}
	return n.emit(ctx, ev, ev.Idx, model.FamilyEVSensor, model.PlatformSensor, *ev.V)
}

func (n *Normalizer) handleGasSensor(ctx context.Context, ev model.RawEvent) error {
	// zero or negative readings mean "no update", not a zero value
	if ev.Val <= 0 {
		return nil
	}
	return n.emit(ctx, ev, ev.Idx, model.FamilyGasSensor, model.PlatformSensor, ev.Val)
}

func (n *Normalizer) handleClimate(ctx context.Context, ev model.RawEvent) error {
	key, known := n.reg.Resolve(ev.DevType, ev.Agt, ev.Me, "")
	if !known {
		key = n.reg.Seed(ev.DevType, ev.Agt, ev.Me, "", model.FamilyClimate, model.PlatformClimate)
	}
	attrs := n.reg.Attributes(key)
	state := model.HVACOff.String()
	if cached, ok := n.reg.State(key); ok && cached != nil {
		state = cached.(string)
	}

	switch ev.Idx {
	case "O":
		if ev.Type%2 == 1 {
			state = lastMode(attrs)
		} else {
			state = model.HVACOff.String()
		}
	case "P1":
		if ev.Type%2 == 1 {
			state = model.HVACHeat.String()
		} else {
			state = model.HVACOff.String()
		}
	case "P2":
		n.reg.UpdateAttributes(key, map[string]any{"Heating": boolString(ev.Type%2 == 1)})
	case "MODE":
		if ev.Type != 206 {
			return nil
		}
		if state != model.HVACOff.String() {
			if ev.Val < 0 || int(ev.Val) >= len(model.HVACModes) {
				return decodeErr(ev.Me, ev.Idx, "hvac mode index %d out of range", ev.Val)
			}
			state = model.HVACModes[ev.Val].String()
		}
		n.reg.UpdateAttributes(key, map[string]any{"last_mode": state})
	case "F":
		if ev.Type != 206 {
			return nil
		}
		n.reg.UpdateAttributes(key, map[string]any{"fan_mode": model.FanModeForSpeed(int(ev.Val)).String()})
	case "tT", "P3":
		if ev.Type != 136 {
			return nil
		}
		if ev.V == nil {
			return decodeErr(ev.Me, ev.Idx, "temperature event without v field")
		}
		n.reg.UpdateAttributes(key, map[string]any{"temperature": *ev.V})
	case "T", "P4":
		if ev.Type != 8 && ev.Type != 9 {
			return nil
		}
		if ev.V == nil {
			return decodeErr(ev.Me, ev.Idx, "temperature event without v field")
		}
		n.reg.UpdateAttributes(key, map[string]any{"current_temperature": *ev.V})
	default:
		return nil
	}

	n.reg.SetState(key, state)
	snap, _ := n.reg.Snapshot(key)
	return n.sink.ApplyState(ctx, model.StateUpdate{
		EntityKey:  key,
		Platform:   model.PlatformClimate,
		DeviceName: snap.Name,
		State:      state,
		Attributes: snap.Attributes,
	})
}

func (n *Normalizer) handleLock(ctx context.Context, ev model.RawEvent) error {
	switch ev.Idx {
	case "BAT":
		return n.emit(ctx, ev, ev.Idx, model.FamilyLock, model.PlatformSensor, ev.Val)
	case "EVTLO":
		if ev.Ts == 0 {
			return decodeErr(ev.Me, ev.Idx, "lock event without ts field")
		}
		method := ev.Val >> 12
		user := ev.Val & 0xfff
		key, known := n.reg.Resolve(ev.DevType, ev.Agt, ev.Me, ev.Idx)
		if !known {
			key = n.reg.Seed(ev.DevType, ev.Agt, ev.Me, ev.Idx, model.FamilyLock, model.PlatformBinarySensor)
		}
		n.reg.UpdateAttributes(key, map[string]any{
			"unlocking_way":     method,
			"unlocking_user":    user,
			"unlocking_success": user != 0,
			"devtype":           ev.DevType,
			"last_time":         time.Unix(ev.Ts/1000, 0).Format(lockTimeLayout),
		})
		state := onOff(ev.Type%2 == 1)
		n.reg.SetState(key, state)
		snap, _ := n.reg.Snapshot(key)
		return n.sink.ApplyState(ctx, model.StateUpdate{
			EntityKey:  key,
			Platform:   model.PlatformBinarySensor,
			DeviceName: snap.Name,
			State:      state,
			Attributes: snap.Attributes,
		})
	default:
		return nil
	}
}

func lastMode(attrs map[string]any) string {
	if v, ok := attrs["last_mode"].(string); ok && v != "" {
		return v
	}
	return model.HVACOff.String()
}

// binarySensorActive applies the canonical polarity table: door/guard
// contacts are active (open) on val==0, every other subtype on val==1.
func binarySensorActive(devType string, val int64) bool {
	if lo.Contains(model.GuardSensorTypes, devType) {
		return val == 0
	}
	return val == 1
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
