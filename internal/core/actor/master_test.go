package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/scpiconsole/internal/adapter/actor"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/service"
	"github.com/berfenger/scpiconsole/internal/mqtt"
	"github.com/berfenger/scpiconsole/internal/util"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCatalog() *scpi.Configuration {
	return &scpi.Configuration{
		Device: scpi.Device{Address: "192.168.1.50:5025", Channels: 3},
		Commands: []scpi.CommandDefinition{
			{Name: "Output", PerChannel: true, Template: "OUTP<CH> ", AllowedValues: []string{"ON", "OFF"}},
			{Name: "Identify", Template: "*IDN?", AllowedValues: []string{""}},
		},
	}
}

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = true
	cfg.MQTT.HADiscoveryEnable = true
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	session := &scpi.TestDeviceSession{}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, testCatalog(), func(es *eventstream.EventStream) *adactor.DeviceSessionActor {
			return adactor.NewDeviceSessionActor(&cfg, session, es, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(500 * time.Millisecond)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterRoutesSessionRequests(t *testing.T) {

	require := require.New(t)

	as := actor.NewActorSystem()
	context := as.Root
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	session := &scpi.TestDeviceSession{}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, testCatalog(), func(es *eventstream.EventStream) *adactor.DeviceSessionActor {
			return adactor.NewDeviceSessionActor(&cfg, session, es, logger)
		}, nil, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(err)

	res, err := context.RequestFuture(pid, domain.ConnectRequest{Address: "10.0.0.1:5025"}, 2*time.Second).Result()
	require.NoError(err)
	require.True(res.(domain.ConnectResponse).Status.Connected)

	res, err = context.RequestFuture(pid, domain.SendCommandRequest{Command: "OUTP1 ON\n", AwaitReply: true}, 2*time.Second).Result()
	require.NoError(err)
	require.Equal("OUTP1 ON\n", res.(domain.SendCommandResponse).Reply)

	// bridge commands are resolved against the catalog and have no reply target
	off := "OFF"
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		Command: mqtt.COMMAND_COMMAND,
		Request: service.CommandRequest{Command: "Output", Channel: 3, Argument: &off},
	}})
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		Command: mqtt.COMMAND_COMMAND,
		Request: service.CommandRequest{Command: "Unknown"},
	}})

	require.Eventually(func() bool {
		sent := session.Sent()
		return len(sent) == 2 && sent[1] == "OUTP3 OFF\n"
	}, 2*time.Second, 20*time.Millisecond)

	res, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	require.True(res.(domain.ActorHealthResponse).Healthy, "no mqtt child needed")
}

func TestMasterStatusJob(t *testing.T) {

	require := require.New(t)

	as := actor.NewActorSystem()
	context := as.Root
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	cfg.Status.IntervalSeconds = 1
	logger := zap.NewNop()

	master := NewMasterOfPuppetsActor(cfg, testCatalog(), func(es *eventstream.EventStream) *adactor.DeviceSessionActor {
		return adactor.NewDeviceSessionActor(&cfg, &scpi.TestDeviceSession{}, es, logger)
	}, nil, logger)

	ticks := make(chan domain.SessionStatus, 10)
	sub := master.eventStream.Subscribe(func(evt any) {
		if e, ok := evt.(domain.SessionStatusChangedEvent); ok {
			select {
			case ticks <- e.Status:
			default:
			}
		}
	})
	defer master.eventStream.Unsubscribe(sub)

	pid, err := context.SpawnNamed(actor.PropsFromProducer(func() actor.Actor { return master }), domain.ACTOR_ID_MASTER)
	require.NoError(err)

	select {
	case status := <-ticks:
		require.False(status.Connected)
	case <-time.After(3 * time.Second):
		t.Fatal("status job did not publish")
	}

	context.StopFuture(pid).Wait()
}
