package scpi

import (
	"strconv"
	"strings"
)

const (
	TOKEN_CHANNEL  = "<CH>"
	TOKEN_FREETEXT = "<TXT>"

	LINE_TERMINATOR = "\n"
)

// Expand builds the wire string for a command. The channel replaces every <CH>
// of the template, the argument is appended verbatim and every <TXT> of the
// combined string is then replaced by freetext, so a <TXT> may come from the
// argument as well. Unmatched tokens are left alone and nothing is validated.
// The result always ends with exactly one line terminator.
func Expand(cmd CommandDefinition, channel uint8, argument string, freetext string) string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(cmd.Template, TOKEN_CHANNEL, strconv.Itoa(int(channel))))
	sb.WriteString(argument)
	scpi := strings.ReplaceAll(sb.String(), TOKEN_FREETEXT, freetext)
	return strings.TrimRight(scpi, "\r\n") + LINE_TERMINATOR
}

// Terminate appends a line terminator to a literal command line typed by the
// operator, dropping any terminator it already has.
func Terminate(line string) string {
	return strings.TrimRight(line, "\r\n") + LINE_TERMINATOR
}
