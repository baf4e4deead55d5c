package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/scpiconsole/internal/adapter/actor"
	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/service"
	. "github.com/berfenger/scpiconsole/internal/util/actorutil"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type SessionActorProvider func(*eventstream.EventStream) *adactor.DeviceSessionActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	catalog              *scpi.Configuration
	resolver             *service.CommandResolver
	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	sessionActor         *actor.PID
	mqttActor            *actor.PID
	sessionActorProvider SessionActorProvider
	mqttActorProvider    MQTTActorProvider
	scheduler            quartz.Scheduler
	stopScheduler        context.CancelFunc
	logger               *zap.Logger
}

type healthCheckResult struct {
	sessionActorHealthy bool
	mqttActorHealthy    bool
	checksExpected      int
	checksReceived      int
	respondTo           *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, catalog *scpi.Configuration, sessionActorProvider SessionActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		catalog:              catalog,
		resolver:             service.NewCommandResolver(catalog),
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		sessionActorProvider: sessionActorProvider,
		mqttActorProvider:    mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start session child
		sessionActorPID, err := state.startSessionActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sessionActor = sessionActorPID

		if state.config.MQTT.Enable {
			// start MQTT child
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				_, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
			}
		}

		// periodic status publication
		if state.config.Status.IntervalSeconds > 0 {
			if err := state.startStatusJob(ctx); err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Session Actor Request
		state.currentHealthCheck.checksExpected++
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sessionActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_SESSION,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		if state.mqttActor != nil {
			state.currentHealthCheck.checksExpected++
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_MQTT,
					Healthy: false,
				}
			})
		} else {
			state.currentHealthCheck.mqttActorHealthy = true
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.SessionRequest:
		// the session actor answers the original sender
		state.logger.Debug("master@default SessionRequest", zap.String("type", fmt.Sprintf("%T", msg)))
		ctx.RequestWithCustomSender(state.sessionActor, msg, ctx.Sender())
	case adactor.ParsedCommand:
		// redirect parsedCommand to the session
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			req, err := ParsedMQTTCommandToCommand(state.resolver, *msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid bridge command", zap.Error(err))
				return
			}
			ctx.Send(state.sessionActor, req)
		}
	case domain.PublishStatusTick:
		state.logger.Debug("master@default PublishStatusTick")
		ctx.Request(state.sessionActor, domain.GetSessionStatusRequest{})
	case domain.GetSessionStatusResponse:
		state.eventStream.Publish(domain.SessionStatusChangedEvent{Status: msg.Status})
	case *actor.Terminated:
		// the session is required, terminate with it
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_SESSION) {
			state.logger.Error("master@default session terminated")
			panic(errors.New("session terminated"))
		}
	case *actor.Stopping:
		state.stopStatusJob()
	default:
		state.logger.Debug("master@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_SESSION:
				state.currentHealthCheck.sessionActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case *actor.Stopping:
		state.stopStatusJob()
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startSessionActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	sessionProps := actor.PropsFromProducer(func() actor.Actor {
		return state.sessionActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	sessionActorPID, err := ctx.SpawnNamed(sessionProps, domain.ACTOR_ID_SESSION)
	if err != nil {
		return nil, err
	}

	return sessionActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.catalog, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startStatusJob(ctx actor.Context) error {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return err
	}
	schedCtx, cancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	interval := time.Duration(state.config.Status.IntervalSeconds) * time.Second
	job := NewStatusJob(ctx.ActorSystem().Root, ctx.Self())
	err = sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(STATUS_JOB_KEY)), quartz.NewSimpleTrigger(interval))
	if err != nil {
		sched.Stop()
		cancel()
		return err
	}
	state.scheduler = sched
	state.stopScheduler = cancel
	state.logger.Debug("master: status job scheduled", zap.Duration("interval", interval))
	return nil
}

func (state *MasterOfPuppetsActor) stopStatusJob() {
	if state.scheduler == nil {
		return
	}
	state.scheduler.Stop()
	state.stopScheduler()
	state.scheduler = nil
}

func (state *healthCheckResult) reset() {
	state.sessionActorHealthy = false
	state.mqttActorHealthy = false
	state.checksExpected = 0
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.sessionActorHealthy && state.mqttActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
