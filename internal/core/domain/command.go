package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// SessionRequest is any request served by the device session actor.
type SessionRequest interface {
	ActorRequest
	sessionRequest()
}

type SessionRequestMixIn struct {
	ActorRequestMixIn
}

func (SessionRequestMixIn) sessionRequest() {}

// Session commands

type ConnectRequest struct {
	SessionRequestMixIn
	Address string
}

type ConnectResponse struct {
	ActorResponseMixIn
	Status SessionStatus
}

// SendCommandRequest writes an already expanded command line. With
// AwaitReply the session reads one reply line right after the write.
type SendCommandRequest struct {
	SessionRequestMixIn
	Command    string
	AwaitReply bool
}

type SendCommandResponse struct {
	ActorResponseMixIn
	Written int
	Reply   string
	Replied bool
}

type ReceiveRequest struct {
	SessionRequestMixIn
}

type ReceiveResponse struct {
	ActorResponseMixIn
	Reply string
}

type GetSessionStatusRequest struct {
	SessionRequestMixIn
}

type GetSessionStatusResponse struct {
	ActorResponseMixIn
	Status SessionStatus
}

// ensure interface compliance
var (
	_ SessionRequest = (*ConnectRequest)(nil)
	_ SessionRequest = (*SendCommandRequest)(nil)
	_ SessionRequest = (*ReceiveRequest)(nil)
	_ SessionRequest = (*GetSessionStatusRequest)(nil)
)

func SessionReplyTo(pid *actor.PID) SessionRequestMixIn {
	return SessionRequestMixIn{ActorRequestMixIn: ReplyTo(pid)}
}
