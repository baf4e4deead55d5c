package actor

import (
	"fmt"
	"strings"
	"time"

	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/port"
	"github.com/berfenger/scpiconsole/internal/util/actorutil"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// DeviceSessionActor owns the single instrument session. Network operations
// run in background tasks while the actor is busy, every request received in
// the meantime is stashed and replayed afterwards.
type DeviceSessionActor struct {
	actorutil.ActorWithStates
	config      *config.Config
	stash       *actorutil.Stash
	session     port.DeviceSession
	status      domain.SessionStatus
	eventStream *eventstream.EventStream
	logger      *zap.Logger
}

type sessionTaskResult struct {
	replyTo  *actor.PID
	update   func(*domain.SessionStatus)
	response func(domain.SessionStatus) any
}

type sessionIdleState struct {
	a *DeviceSessionActor
}

type sessionBusyState struct {
	a *DeviceSessionActor
}

func NewDeviceSessionActor(config *config.Config, session port.DeviceSession, eventStream *eventstream.EventStream, logger *zap.Logger) *DeviceSessionActor {
	act := &DeviceSessionActor{
		ActorWithStates: actorutil.ActorWithStates{Behavior: actor.NewBehavior()},
		config:          config,
		stash:           &actorutil.Stash{},
		session:         session,
		eventStream:     eventStream,
		logger:          actorutil.ActorLogger(domain.ACTOR_ID_SESSION, logger),
	}
	act.Become(sessionIdleState{a: act})
	return act
}

func (state *DeviceSessionActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (s sessionIdleState) Name() string {
	return "idle"
}

func (s sessionIdleState) Receive(ctx actor.Context) {
	state := s.a
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("session@idle started")
		state.status.Connected = state.session.Connected()
		state.status.UpdatedAt = time.Now()
		if state.config.Session.AutoConnect && state.config.Session.Address != "" {
			ctx.Send(ctx.Self(), domain.ConnectRequest{Address: state.config.Session.Address})
		}
	case domain.ActorHealthRequest:
		state.respondHealth(ctx)
	case domain.GetSessionStatusRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetSessionStatusResponse{Status: state.status})
	case domain.ConnectRequest, domain.SendCommandRequest, domain.ReceiveRequest:
		state.start(ctx, msg, ctx.Sender())
	case *actor.Restarting:
		state.close()
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("session@idle default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (s sessionBusyState) Name() string {
	return "busy"
}

func (s sessionBusyState) Receive(ctx actor.Context) {
	state := s.a
	switch msg := ctx.Message().(type) {
	case sessionTaskResult:
		if msg.update != nil {
			msg.update(&state.status)
		}
		state.status.UpdatedAt = time.Now()
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.response(state.status))
		}
		if state.eventStream != nil {
			state.eventStream.Publish(domain.SessionStatusChangedEvent{Status: state.status})
		}
		state.UnbecomeStacked()
		state.startStashed(ctx)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx)
	case domain.GetSessionStatusRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetSessionStatusResponse{Status: state.status})
	case *actor.Restarting:
		state.close()
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("session@busy stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// start begins the operation requested by msg and reports whether it did.
func (state *DeviceSessionActor) start(ctx actor.Context, msg any, sender *actor.PID) bool {
	switch msg := msg.(type) {
	case domain.ConnectRequest:
		state.logger.Debug("session@idle ConnectRequest", zap.String("address", msg.Address))
		address := msg.Address
		state.run(ctx, replyTarget(msg, sender), "connect", func() (*sessionTaskResult, error) {
			return state.connect(address), nil
		}, func(err error) any {
			return domain.ConnectResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
	case domain.SendCommandRequest:
		state.logger.Debug("session@idle SendCommandRequest", zap.String("command", msg.Command), zap.Bool("await_reply", msg.AwaitReply))
		command, awaitReply := msg.Command, msg.AwaitReply
		state.run(ctx, replyTarget(msg, sender), "send", func() (*sessionTaskResult, error) {
			return state.send(command, awaitReply), nil
		}, func(err error) any {
			return domain.SendCommandResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
	case domain.ReceiveRequest:
		state.logger.Debug("session@idle ReceiveRequest")
		state.run(ctx, replyTarget(msg, sender), "receive", func() (*sessionTaskResult, error) {
			return state.receive(), nil
		}, func(err error) any {
			return domain.ReceiveResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
	default:
		state.logger.Debug("session@idle dropped", zap.String("type", fmt.Sprintf("%T", msg)))
		return false
	}
	return true
}

// startStashed starts the oldest stashed request right away instead of
// sending it back through the mailbox, so requests run in arrival order.
func (state *DeviceSessionActor) startStashed(ctx actor.Context) {
	for {
		msg, sender, ok := state.stash.Pop()
		if !ok || state.start(ctx, msg, sender) {
			return
		}
	}
}

// run executes one session operation in the background. A timeout or panic is
// turned into a failed response built by failed.
func (state *DeviceSessionActor) run(ctx actor.Context, replyTo *actor.PID, op string,
	fn func() (*sessionTaskResult, error), failed func(error) any) {
	task := func() (*sessionTaskResult, error) {
		r, err := fn()
		if r != nil {
			r.replyTo = replyTo
		}
		return r, err
	}
	actorutil.NewBackgroundTask(ctx, task).Recover(func(err error) sessionTaskResult {
		state.logger.Error("session: operation aborted", zap.String("op", op), zap.Error(err))
		ioErr := &scpi.IoError{Kind: scpi.TimedOut, Op: op, Err: err}
		return sessionTaskResult{
			replyTo: replyTo,
			update: func(s *domain.SessionStatus) {
				s.LastError = ioErr.Error()
			},
			response: func(domain.SessionStatus) any {
				return failed(ioErr)
			},
		}
	}).WithTimeout(state.config.Session.OperationTimeout()).PipeTo(ctx.Self())
	state.BecomeStacked(sessionBusyState{a: state})
}

func (state *DeviceSessionActor) connect(address string) *sessionTaskResult {
	err := state.session.Connect(address)
	peer := ""
	if err == nil {
		if addr, perr := state.session.PeerAddress(); perr == nil {
			peer = addr.String()
		}
		state.logger.Info("session: connected", zap.String("address", address), zap.String("peer", peer))
	} else {
		state.logger.Warn("session: connect failed", zap.String("address", address), zap.Error(err))
	}
	connected := err == nil
	return &sessionTaskResult{
		update: func(s *domain.SessionStatus) {
			s.Connected = connected
			s.Address = address
			s.Peer = peer
			s.LastError = errorText(err)
		},
		response: func(status domain.SessionStatus) any {
			return domain.ConnectResponse{ActorResponseMixIn: domain.ErrorResponse(err), Status: status}
		},
	}
}

func (state *DeviceSessionActor) send(command string, awaitReply bool) *sessionTaskResult {
	written, err := state.session.Send([]byte(command))
	reply := ""
	replied := false
	if err == nil && awaitReply {
		reply, err = state.session.Receive()
		replied = err == nil
	}
	if err != nil {
		state.logger.Warn("session: send failed", zap.String("command", trimLine(command)), zap.Error(err))
	}
	connected := state.session.Connected()
	return &sessionTaskResult{
		update: func(s *domain.SessionStatus) {
			s.Connected = connected
			s.LastCommand = trimLine(command)
			if replied {
				s.LastReply = trimLine(reply)
			}
			s.LastError = errorText(err)
		},
		response: func(domain.SessionStatus) any {
			return domain.SendCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				Written:            written,
				Reply:              reply,
				Replied:            replied,
			}
		},
	}
}

func (state *DeviceSessionActor) receive() *sessionTaskResult {
	reply, err := state.session.Receive()
	if err != nil {
		state.logger.Warn("session: receive failed", zap.Error(err))
	}
	connected := state.session.Connected()
	return &sessionTaskResult{
		update: func(s *domain.SessionStatus) {
			s.Connected = connected
			if err == nil {
				s.LastReply = trimLine(reply)
			}
			s.LastError = errorText(err)
		},
		response: func(domain.SessionStatus) any {
			return domain.ReceiveResponse{ActorResponseMixIn: domain.ErrorResponse(err), Reply: reply}
		},
	}
}

func (state *DeviceSessionActor) respondHealth(ctx actor.Context) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_SESSION,
		Healthy: true,
		State:   state.StateName(),
	})
}

func (state *DeviceSessionActor) close() {
	state.logger.Debug("session: close")
	if err := state.session.Close(); err != nil {
		state.logger.Warn("session: close failed", zap.Error(err))
	}
}

func replyTarget(req domain.ActorRequest, sender *actor.PID) *actor.PID {
	if req.ReplyTo() != nil {
		return (*actor.PID)(req.ReplyTo())
	}
	return sender
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
