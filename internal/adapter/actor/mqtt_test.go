package actor

import (
	"testing"
	"time"

	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/events"
	"github.com/berfenger/scpiconsole/internal/mqtt"
	"github.com/berfenger/scpiconsole/internal/util"
	"github.com/berfenger/scpiconsole/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(domain.SessionStatusChangedEvent{
		Status: domain.SessionStatus{
			Connected:   true,
			Peer:        "192.168.1.50:5025",
			LastCommand: "*IDN?",
		},
	})

	result, err = context.RequestFuture(pid, domain.PublishDiscoveryRequest{}, 2*time.Second).Result()
	assert.NoError(t, err)
	assert.IsType(t, domain.PublishDiscoveryResponse{}, result)

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}

func TestEventToMQTTMessage(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	act := NewTestMQTTActor(&cfg, nil, zap.NewNop())
	act.client = mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)

	var messages []*rawMessage
	for _, event := range events.SessionStatusToUpdateEvents(domain.SessionStatus{Connected: true, LastReply: "+1.2345E+01"}) {
		messages = append(messages, act.event2MQTTMessage(event))
	}
	assert.Len(messages, 5)
	assert.Equal("scpiconsole/binary_sensor/device_connected/state", messages[0].topic)
	assert.Equal(mqtt.MQTT_PAYLOAD_ON, messages[0].message)
	assert.True(messages[0].retain)
	assert.Equal("scpiconsole/sensor/last_reply/state", messages[3].topic)
	assert.Equal("+1.2345E+01", messages[3].message)

	bridge := act.event2MQTTMessage(events.BridgeStateUpdateEvents(false))
	assert.Equal("scpiconsole/bridge/state", bridge.topic)
	assert.Equal(mqtt.MQTT_PAYLOAD_OFFLINE, bridge.message)

	assert.Nil(act.event2MQTTMessage("unknown"))
}
