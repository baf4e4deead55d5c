package actor

import (
	"context"

	"github.com/berfenger/scpiconsole/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	STATUS_JOB_KEY = "session_status"
)

// StatusJob is a quartz job that asks the master to publish the session status.
type StatusJob struct {
	root   *actor.RootContext
	master *actor.PID
}

func NewStatusJob(root *actor.RootContext, master *actor.PID) *StatusJob {
	return &StatusJob{
		root:   root,
		master: master,
	}
}

func (j *StatusJob) Execute(_ context.Context) error {
	j.root.Send(j.master, domain.PublishStatusTick{})
	return nil
}

func (j *StatusJob) Description() string {
	return "publish session status"
}
