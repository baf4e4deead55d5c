package service

import (
	"errors"
	"fmt"

	"github.com/berfenger/scpiconsole/pkg/scpi"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandRequest addresses a catalog command by name, the way remote
// front-ends (HTTP, MQTT) describe a selection. Raw bypasses the catalog.
type CommandRequest struct {
	Command  string  `json:"command"`
	Channel  uint8   `json:"channel"`
	Argument *string `json:"argument"`
	Freetext string  `json:"freetext"`
	Raw      string  `json:"raw"`
}

type CommandResolver struct {
	Catalog *scpi.Configuration
}

func NewCommandResolver(catalog *scpi.Configuration) *CommandResolver {
	return &CommandResolver{Catalog: catalog}
}

// Resolve returns the wire string for req. Missing channel and argument fall
// back to the same defaults a fresh selection starts with.
func (r *CommandResolver) Resolve(req CommandRequest) (string, error) {
	if req.Raw != "" {
		return scpi.Terminate(req.Raw), nil
	}
	cmd, ok := r.Catalog.FindCommand(req.Command)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
	sel := scpi.NewSelection(r.Catalog)
	sel.SelectCommand(cmd)
	if req.Channel > 0 {
		sel.SelectChannel(req.Channel)
	}
	if req.Argument != nil {
		sel.SelectArgument(*req.Argument)
	}
	sel.SetFreetext(req.Freetext)
	return sel.Command(), nil
}
