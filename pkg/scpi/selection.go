package scpi

import (
	"slices"
	"strings"
)

const DEFAULT_CHANNEL uint8 = 1

// Selection holds the operator's current choice of command, channel, argument
// and free text. It is owned by a single front-end and is not safe for
// concurrent use.
type Selection struct {
	cfg      *Configuration
	command  CommandDefinition
	channel  uint8
	argument string
	freetext string
}

// NewSelection starts on the first command, its first value and channel 1.
func NewSelection(cfg *Configuration) *Selection {
	s := &Selection{
		cfg:     cfg,
		channel: DEFAULT_CHANNEL,
	}
	s.SelectCommand(cfg.Commands[0])
	return s
}

// SelectCommand switches command and resets the argument to its first value.
func (s *Selection) SelectCommand(cmd CommandDefinition) {
	s.command = cmd
	s.argument = ""
	if len(cmd.AllowedValues) > 0 {
		s.argument = cmd.AllowedValues[0]
	}
}

func (s *Selection) SelectChannel(channel uint8) {
	s.channel = channel
}

func (s *Selection) SelectArgument(argument string) {
	s.argument = argument
}

func (s *Selection) SetFreetext(freetext string) {
	s.freetext = freetext
}

func (s *Selection) Selected() CommandDefinition {
	return s.command
}

func (s *Selection) Channel() uint8 {
	return s.channel
}

func (s *Selection) Argument() string {
	return s.argument
}

func (s *Selection) Freetext() string {
	return s.freetext
}

// Command returns the expanded wire string for the current selection.
func (s *Selection) Command() string {
	return Expand(s.command, s.channel, s.argument, s.freetext)
}

// NeedsFreetext reports whether the selected argument takes free text.
func (s *Selection) NeedsFreetext() bool {
	return strings.Contains(s.argument, TOKEN_FREETEXT)
}

func (s *Selection) Commands() []CommandDefinition {
	return slices.Clone(s.cfg.Commands)
}

func (s *Selection) Arguments() []string {
	return slices.Clone(s.command.AllowedValues)
}

// Channels lists 1..device channel count.
func (s *Selection) Channels() []uint8 {
	channels := make([]uint8, 0, s.cfg.Device.Channels)
	for ch := 1; ch <= int(s.cfg.Device.Channels); ch++ {
		channels = append(channels, uint8(ch))
	}
	return channels
}
