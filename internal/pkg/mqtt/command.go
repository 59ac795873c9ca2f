package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anicoll/lifesmart-integration/internal/pkg/rest"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	sendKeysTopic   = "lifesmart/command/send_keys"
	sendACKeysTopic = "lifesmart/command/send_ackeys"
)

type irSender interface {
	SendIRKeys(ctx context.Context, p rest.SendKeysParams) error
	SendACKeys(ctx context.Context, p rest.SendACKeysParams) error
}

// SubscribeCommands routes inbound command topics to the encoder. Bad
// payloads and failed sends are logged, never propagated; one broken
// message must not take the subscription down.
func (s *service) SubscribeCommands(ctx context.Context, sender irSender) error {
	token := s.client.Subscribe(sendKeysTopic, 1, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		var p rest.SendKeysParams
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			zap.L().Error("bad send_keys payload", zap.Error(err))
			return
		}
		if err := sender.SendIRKeys(ctx, p); err != nil {
			zap.L().Error("send_keys failed", zap.Error(err), zap.String("me", p.Me))
		}
	})
	if !token.WaitTimeout(time.Second * 5) {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}

	token = s.client.Subscribe(sendACKeysTopic, 1, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		var p rest.SendACKeysParams
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			zap.L().Error("bad send_ackeys payload", zap.Error(err))
			return
		}
		if err := sender.SendACKeys(ctx, p); err != nil {
			zap.L().Error("send_ackeys failed", zap.Error(err), zap.String("me", p.Me))
		}
	})
	if !token.WaitTimeout(time.Second * 5) {
		return token.Error()
	}
	return token.Error()
}
