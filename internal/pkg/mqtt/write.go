package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/registry"
	"github.com/gosimple/slug"
)

type registerMessage struct {
	Tilda      string         `json:"~"`
	Name       string         `json:"name"`
	ID         string         `json:"unique_id"`
	StateTopic string         `json:"state_topic"`
	Device     registerDevice `json:"device"`
}

type registerDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

type statePayload struct {
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Device     string         `json:"device,omitempty"`
}

// ApplyState publishes the normalized update retained, so consumers joining
// late still see the current state.
func (s *service) ApplyState(_ context.Context, update model.StateUpdate) error {
	topic := fmt.Sprintf("lifesmart/%s/%s/state", update.Platform, update.EntityKey)
	payload, err := json.Marshal(statePayload{
		State:      update.State,
		Attributes: update.Attributes,
		Device:     update.DeviceName,
	})
	if err != nil {
		return err
	}
	token := s.client.Publish(topic, 0, true, payload)
	if token.WaitTimeout(time.Second * 10) {
		return nil
	}
	return token.Error()
}

func (s *service) RegisterDevice(device *model.Device) error {
	id := registry.EntityKey(device.DevType, device.Agt, device.Me, "")
	if _, exists := s.configuredDevices[id]; exists {
		return nil
	}
	payload, err := json.Marshal(defaultRegisterMsg(device, id))
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("homeassistant/sensor/%s/config", id)
	token := s.client.Publish(topic, 1, true, payload)
	if err := token.Error(); err != nil {
		return err
	}
	if token.WaitTimeout(time.Second * 5) {
		s.configuredDevices[id] = struct{}{}
	}
	return nil
}

func defaultRegisterMsg(device *model.Device, id string) registerMessage {
	name := device.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", device.DevType, device.Me)
	}
	return registerMessage{
		Tilda:      fmt.Sprintf("homeassistant/sensor/%s", id),
		Name:       name,
		ID:         slug.Make(id),
		StateTopic: "~/state",
		Device: registerDevice{
			Name:         name,
			Identifiers:  []string{id},
			Model:        device.DevType,
			Manufacturer: "LifeSmart",
		},
	}
}
