package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash keeps messages received while an actor is busy, with their original
// sender, so they can be replayed later.
type Stash struct {
	stash []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (stash *Stash) Stash(ctx actor.Context, msg any) {
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

// Pop removes the oldest stashed message and returns it with its sender,
// leaving delivery to the caller.
func (stash *Stash) Pop() (any, *actor.PID, bool) {
	if len(stash.stash) == 0 {
		return nil, nil, false
	}
	first := stash.stash[0]
	stash.stash = stash.stash[1:]
	return first.msg, first.sender, true
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.stash {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.stash = nil
}
