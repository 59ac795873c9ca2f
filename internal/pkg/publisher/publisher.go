package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"go.uber.org/zap"
)

var errAlreadyRegistered = errors.New("publisher already registered")

// Sink receives normalized state transitions and device registrations.
type Sink interface {
	ApplyState(ctx context.Context, update model.StateUpdate) error
	RegisterDevice(device *model.Device) error
}

var (
	mu              sync.RWMutex
	registeredSinks = make(map[string]Sink)
	lastApplied     sync.Map
)

// RegisterPublisher adds a named sink to the fanout set.
func RegisterPublisher(name string, sink Sink) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registeredSinks[name]; ok {
		return errAlreadyRegistered
	}
	registeredSinks[name] = sink
	return nil
}

// ApplyState fans one normalized update out to every registered sink.
// Consecutive identical updates for the same entity are suppressed; the
// fingerprint covers attributes as well as state because lock events repeat
// the same state with new attributes. A failing sink is logged and skipped,
// never fatal to event processing.
func ApplyState(ctx context.Context, update model.StateUpdate) error {
	if !shouldUpdate(update) {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	for name, sink := range registeredSinks {
		if err := sink.ApplyState(ctx, update); err != nil {
			zap.L().Error("failed to apply state",
				zap.Error(err),
				zap.String("publisher", name),
				zap.String("entity_key", update.EntityKey))
			continue
		}
		zap.L().Debug("applied state",
			zap.String("publisher", name),
			zap.String("entity_key", update.EntityKey),
			zap.Any("state", update.State))
	}
	return nil
}

// RegisterDevice announces one enumerated device to every registered sink.
func RegisterDevice(device *model.Device) error {
	mu.RLock()
	defer mu.RUnlock()
	for name, sink := range registeredSinks {
		if err := sink.RegisterDevice(device); err != nil {
			zap.L().Error("failed to register device",
				zap.Error(err),
				zap.String("publisher", name),
				zap.String("me", device.Me))
			continue
		}
		zap.L().Debug("registered device", zap.String("me", device.Me), zap.String("publisher", name))
	}
	return nil
}

func shouldUpdate(update model.StateUpdate) bool {
	fingerprint := fmt.Sprintf("%v|%v", update.State, update.Attributes)
	old, exists := lastApplied.Load(update.EntityKey)
	if exists && old.(string) == fingerprint {
		return false
	}
	if !exists {
		zap.L().Info("configured entity:",
			zap.String("entity_key", update.EntityKey),
			zap.String("platform", update.Platform.String()))
	}
	lastApplied.Store(update.EntityKey, fingerprint)
	return true
}

// Broadcaster adapts the package-level fanout to the Sink interface so it
// can be injected where a single sink is expected.
type Broadcaster struct{}

func (Broadcaster) ApplyState(ctx context.Context, update model.StateUpdate) error {
	return ApplyState(ctx, update)
}

func (Broadcaster) RegisterDevice(device *model.Device) error {
	return RegisterDevice(device)
}
