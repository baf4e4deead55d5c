package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/events"
	"github.com/berfenger/scpiconsole/internal/mqtt"
	"github.com/berfenger/scpiconsole/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTActor bridges the device session to MQTT: it forwards commands received
// on the command topics to its parent and publishes every session status
// change as sensor states.
type MQTTActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       *mqtt.MQTTClient
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	logger       *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.ConnectingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

// ConnectingReceive connects and subscribes to the command topics. Anything
// else waits in the stash until the bridge is ready.
func (state *MQTTActor) ConnectingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@connecting started")
		root, self := ctx.ActorSystem().Root, ctx.Self()
		lost := func(err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		}

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, func(_ pahomqtt.Client, err error) {
			lost(err)
		})
		state.client.Connect(func(err error) {
			if err != nil {
				lost(err)
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)
	case MQTTConnected:
		state.logger.Debug("mqtt@connecting connected")
		state.publishSensorValues([]domain.SensorUpdateEvent{events.BridgeStateUpdateEvents(true)})

		root, self := ctx.ActorSystem().Root, ctx.Self()
		state.client.SubscribeToCommandTopics(func(_ pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err != nil {
				state.logger.Warn("mqtt: invalid command", zap.String("topic", m.Topic()), zap.Error(err))
				return
			}
			root.Send(self, ParsedCommand{Command: cmd})
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		state.logger.Debug("mqtt@connecting subscribed")
		state.subscribeToEvents(ctx)
		state.behavior.Become(state.BridgingReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// let the supervisor restart the bridge
		state.logger.Error("mqtt@connecting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@connecting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) BridgingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "bridging",
		})
	case ParsedCommand:
		state.logger.Debug("mqtt@bridging command", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.SessionStatusChangedEvent:
		state.logger.Debug("mqtt@bridging session status", zap.Bool("connected", msg.Status.Connected))
		state.publishSensorValues(events.SessionStatusToUpdateEvents(msg.Status))
	case domain.PublishDiscoveryRequest:
		err := state.publishDiscovery(msg.Sensors, msg.Texts)
		if err != nil {
			state.logger.Error("mqtt@bridging discovery", zap.Error(err))
		}
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
		}
	case MQTTConnectionLost:
		state.logger.Error("mqtt@bridging connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@bridging default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) subscribeToEvents(ctx actor.Context) {
	if state.eventStream == nil || state.subscription != nil {
		return
	}
	root, self := ctx.ActorSystem().Root, ctx.Self()
	state.subscription = state.eventStream.Subscribe(func(evt any) {
		if e, ok := evt.(domain.SessionStatusChangedEvent); ok {
			root.Send(self, e)
		}
	})
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
			retain:  true,
		}
	case domain.TextSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		payload := mqtt.MQTT_PAYLOAD_OFFLINE
		if msg.Value {
			payload = mqtt.MQTT_PAYLOAD_ONLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: payload,
			retain:  true,
		}
	default:
		return nil
	}
}

// publishSensorValues does not wait for the broker, failures are only logged.
func (state *MQTTActor) publishSensorValues(events []domain.SensorUpdateEvent) {
	for _, event := range events {
		msg := state.event2MQTTMessage(event)
		if msg == nil {
			continue
		}
		state.logger.Sugar().Debugf("mqtt@publish: %s => %s", msg.topic, msg.message)
		topic := msg.topic
		state.client.Publish(topic, msg.message, 1, msg.retain, func(err error) {
			if err != nil {
				state.logger.Error("mqtt@publish could not publish a sensor value", zap.String("topic", topic), zap.Error(err))
			}
		}, 5*time.Second)
	}
}

func (state *MQTTActor) publishDiscovery(sensors []domain.GenericSensor, texts []domain.GenericText) error {
	for i := range sensors {
		payload, err := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i]))
		if err != nil {
			return err
		}
		state.client.Publish(state.client.HADiscoverySensorTopic(sensors[i]), payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range texts {
		payload, err := json.Marshal(mqtt.GenericTextToHADiscoveryMessage(state.client, texts[i]))
		if err != nil {
			return err
		}
		state.client.Publish(state.client.HADiscoveryTextTopic(texts[i]), payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) unsubscribeFromEvents() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	state.unsubscribeFromEvents()
	if state.client != nil && state.client.IsConnected() {
		state.publishSensorValues([]domain.SensorUpdateEvent{events.BridgeStateUpdateEvents(false)})
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	}
	return mqtt.MQTT_PAYLOAD_OFF
}

// NewTestMQTTActor builds a bridge that never touches a broker. It renders
// session events into messages without publishing them.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeToEvents(ctx)
	case *actor.Stopping:
		state.unsubscribeFromEvents()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "dummy",
		})
	case domain.SessionStatusChangedEvent:
		for _, event := range events.SessionStatusToUpdateEvents(msg.Status) {
			if m := state.event2MQTTMessage(event); m != nil {
				state.logger.Sugar().Debugf("mqtt@dummy: %s => %s", m.topic, m.message)
			}
		}
	case ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@dummy discovery", zap.Int("sensors", len(msg.Sensors)), zap.Int("texts", len(msg.Texts)))
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishDiscoveryResponse{})
		}
	}
}
