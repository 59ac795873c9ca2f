// Package registry owns the mapping from vendor device identity to stable
// entity keys, and the per-entity cached state the normalizer needs to
// compute deltas.
package registry

import (
	"strings"
	"sync"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var keyReplacer = strings.NewReplacer(":", "_", "@", "_")

// EntityKey derives the stable key for one device channel. Underscores are
// stripped from the gateway id and the remaining ":"/"@" separators are
// normalized, so the same device always yields the same key whichever code
// path sees it first.
func EntityKey(devType, agt, me, idx string) string {
	agt = strings.ReplaceAll(agt, "_", "")
	key := devType + "_" + agt + "_" + me
	if idx != "" {
		key += "_" + idx
	}
	return keyReplacer.Replace(strings.ToLower(key))
}

// Entity is one registered channel with its cached state.
type Entity struct {
	Key        string
	Platform   model.Platform
	Family     model.DeviceFamily
	DevType    string
	Agt        string
	Me         string
	Idx        string
	Name       string
	State      any
	Attributes map[string]any
}

// Registry is the one shared mutable resource between the push receive
// loop and synchronous command handling; a coarse RWMutex serializes it.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	excluded map[string]struct{}
	logger   *zap.Logger
}

func New(exclude []string) *Registry {
	excluded := make(map[string]struct{}, len(exclude))
	for _, me := range exclude {
		excluded[me] = struct{}{}
	}
	return &Registry{
		entities: make(map[string]*Entity),
		excluded: excluded,
		logger:   zap.L(),
	}
}

// Excluded reports whether a device id is on the exclusion set. Excluded
// devices never reach the registry or the state sink.
func (r *Registry) Excluded(me string) bool {
	_, ok := r.excluded[me]
	return ok
}

// Register creates (or refreshes) the entities for one enumerated device
// and returns their keys. Re-registration is idempotent: the same device
// always maps onto the same keys.
func (r *Registry) Register(dev model.Device) []string {
	if r.Excluded(dev.Me) {
		return nil
	}
	family, ok := model.ClassifyDevice(dev.DevType)
	if !ok {
		r.logger.Debug("unclassified device type", zap.String("devtype", dev.DevType), zap.String("me", dev.Me))
		return nil
	}

	var keys []string
	add := func(e *Entity) {
		r.put(e)
		keys = append(keys, e.Key)
	}

	switch family {
	case model.FamilySwitch:
		for idx, ch := range dev.Data {
			if lo.Contains(model.SwitchChannels, idx) {
				add(r.seedBool(dev, family, model.PlatformSwitch, idx, ch.Type%2 == 1))
			} else if lo.Contains(model.LightTypes, dev.DevType) && lo.Contains(model.LightChannels, idx) {
				// hybrid switch/light hardware, backlight channels are lights
				add(r.seedBool(dev, model.FamilyLight, model.PlatformLight, idx, ch.Type%2 == 1))
			}
		}
	case model.FamilyBinarySensor:
		for idx, ch := range dev.Data {
			if lo.Contains(model.BinarySensorChannels, idx) {
				e := r.seedBool(dev, family, model.PlatformBinarySensor, idx, binarySensorActive(dev.DevType, ch.Val))
				e.Attributes["device_class"] = binarySensorClass(dev.DevType)
				add(e)
			}
			if lo.Contains(model.OTSensorTypes, dev.DevType) && lo.Contains(model.OTSensorChannels, idx) {
				add(r.seedValue(dev, family, model.PlatformSensor, idx, ch.FloatValue()))
			}
		}
	case model.FamilyEVSensor:
		for idx, ch := range dev.Data {
			add(r.seedValue(dev, family, model.PlatformSensor, idx, ch.FloatValue()))
		}
	case model.FamilyGasSensor:
		for idx, ch := range dev.Data {
			add(r.seedValue(dev, family, model.PlatformSensor, idx, ch.Val))
		}
	case model.FamilyLight, model.FamilySpot:
		for idx, ch := range dev.Data {
			if lo.Contains(model.LightChannels, idx) {
				add(r.seedBool(dev, family, model.PlatformLight, idx, ch.Type%2 == 1))
			}
		}
	case model.FamilyCover:
		add(r.seedCover(dev, family))
	case model.FamilyClimate:
		add(r.seedClimate(dev, family))
	case model.FamilyLock:
		for idx, ch := range dev.Data {
			switch idx {
			case "BAT":
				add(r.seedValue(dev, family, model.PlatformSensor, idx, ch.Val))
			case "EVTLO":
				add(r.seedBool(dev, family, model.PlatformBinarySensor, idx, ch.Type%2 == 1))
			}
		}
	}
	return keys
}

// Resolve maps a device tuple to its entity key, reporting whether the
// entity is already registered.
func (r *Registry) Resolve(devType, agt, me, idx string) (string, bool) {
	key := EntityKey(devType, agt, me, idx)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entities[key]
	return key, ok
}

// Seed lazily registers an entity for an event that arrived before (or
// without) enumeration. The update still applies; the sink decides whether
// an unknown entity is a problem.
func (r *Registry) Seed(devType, agt, me, idx string, family model.DeviceFamily, platform model.Platform) string {
	key := EntityKey(devType, agt, me, idx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[key]; ok {
		return key
	}
	e := &Entity{
		Key:      key,
		Platform: platform,
		Family:   family,
		DevType:  devType,
		Agt:      agt,
		Me:       me,
		Idx:      idx,
		Attributes: map[string]any{
			"agt": agt, "me": me, "idx": idx, "devtype": devType,
		},
	}
	r.entities[key] = e
	r.logger.Debug("lazily seeded entity", zap.String("entity_key", key))
	return key
}

// Snapshot returns a copy of the entity for read-only use.
func (r *Registry) Snapshot(key string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key]
	if !ok {
		return Entity{}, false
	}
	snap := *e
	snap.Attributes = copyAttrs(e.Attributes)
	return snap, true
}

// Attributes returns a copy of the cached attributes for one entity.
func (r *Registry) Attributes(key string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key]
	if !ok {
		return map[string]any{}
	}
	return copyAttrs(e.Attributes)
}

// UpdateAttributes merges a patch into the cached attributes.
func (r *Registry) UpdateAttributes(key string, patch map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[key]
	if !ok {
		return
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		e.Attributes[k] = v
	}
}

// SetState stores the current normalized state.
func (r *Registry) SetState(key string, state any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[key]; ok {
		e.State = state
	}
}

// State returns the cached normalized state.
func (r *Registry) State(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key]
	if !ok {
		return nil, false
	}
	return e.State, true
}

// Keys returns every registered entity key, for diagnostics.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entities))
	for k := range r.entities {
		keys = append(keys, k)
	}
	return keys
}

func (r *Registry) put(e *Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entities[e.Key]; ok {
		// keep cached attributes accumulated since the last enumeration
		for k, v := range e.Attributes {
			if _, seen := existing.Attributes[k]; !seen {
				existing.Attributes[k] = v
			}
		}
		existing.Name = e.Name
		return
	}
	r.entities[e.Key] = e
}

func (r *Registry) newEntity(dev model.Device, family model.DeviceFamily, platform model.Platform, idx string) *Entity {
	name := dev.Name
	if idx != "" {
		name = dev.Name + "_" + idx
	}
	return &Entity{
		Key:      EntityKey(dev.DevType, dev.Agt, dev.Me, idx),
		Platform: platform,
		Family:   family,
		DevType:  dev.DevType,
		Agt:      dev.Agt,
		Me:       dev.Me,
		Idx:      idx,
		Name:     name,
		Attributes: map[string]any{
			"agt": dev.Agt, "me": dev.Me, "idx": idx, "devtype": dev.DevType,
		},
	}
}

func (r *Registry) seedBool(dev model.Device, family model.DeviceFamily, platform model.Platform, idx string, on bool) *Entity {
	e := r.newEntity(dev, family, platform, idx)
	e.State = onOff(on)
	return e
}

func (r *Registry) seedValue(dev model.Device, family model.DeviceFamily, platform model.Platform, idx string, value any) *Entity {
	e := r.newEntity(dev, family, platform, idx)
	e.State = value
	return e
}

func (r *Registry) seedCover(dev model.Device, family model.DeviceFamily) *Entity {
	e := r.newEntity(dev, family, model.PlatformCover, "")
	idx := "P1"
	if dev.DevType == "SL_SW_WIN" {
		idx = "OP"
	}
	if ch, ok := dev.Data[idx]; ok {
		position := 0
		if ch.Val != 0 {
			position = 100
		}
		e.Attributes["current_position"] = position
		switch {
		case ch.Type%2 == 0 && ch.Val == 0:
			e.State = "closed"
		case ch.Type%2 == 1 && ch.Val == 1:
			e.State = "open"
		}
	}
	return e
}

func (r *Registry) seedClimate(dev model.Device, family model.DeviceFamily) *Entity {
	e := r.newEntity(dev, family, model.PlatformClimate, "")
	if lo.Contains(model.AirTypes, dev.DevType) {
		mode := model.HVACOff
		if ch, ok := dev.Data["MODE"]; ok && int(ch.Val) < len(model.HVACModes) {
			mode = model.HVACModes[ch.Val]
		}
		e.Attributes["last_mode"] = mode.String()
		if ch, ok := dev.Data["O"]; ok && ch.Type%2 == 0 {
			e.State = model.HVACOff.String()
		} else {
			e.State = mode.String()
		}
		if ch, ok := dev.Data["T"]; ok {
			e.Attributes["current_temperature"] = ch.FloatValue()
		}
		if ch, ok := dev.Data["tT"]; ok {
			e.Attributes["temperature"] = ch.FloatValue()
		}
		if ch, ok := dev.Data["F"]; ok {
			e.Attributes["fan_mode"] = model.FanModeForSpeed(int(ch.Val)).String()
		}
		return e
	}
	// floor-heating thermostat
	if ch, ok := dev.Data["P1"]; ok && ch.Type%2 == 1 {
		e.State = model.HVACHeat.String()
	} else {
		e.State = model.HVACOff.String()
	}
	e.Attributes["last_mode"] = model.HVACHeat.String()
	if ch, ok := dev.Data["P2"]; ok {
		e.Attributes["Heating"] = boolString(ch.Type%2 == 1)
	}
	if ch, ok := dev.Data["P4"]; ok {
		e.Attributes["current_temperature"] = float64(ch.Val) / 10
	}
	if ch, ok := dev.Data["P3"]; ok {
		e.Attributes["temperature"] = float64(ch.Val) / 10
	}
	return e
}

func binarySensorClass(devType string) string {
	switch {
	case lo.Contains(model.GuardSensorTypes, devType):
		return "door"
	case lo.Contains(model.MotionSensorTypes, devType):
		return "motion"
	default:
		return "smoke"
	}
}

// binarySensorActive applies the canonical polarity table: door/guard
// contacts report active (open) on val==0, every other subtype on val==1.
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

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
