// Package console is the interactive terminal front-end. It keeps a command
// selection over the catalog and drives the device session through the
// master actor.
package console

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/chzyer/readline"
	"go.uber.org/zap"
)

const PROMPT = "scpi> "

type Console struct {
	catalog   *scpi.Configuration
	selection *scpi.Selection
	timeout   time.Duration

	rootContext *actor.RootContext
	masterActor *actor.PID

	rl     *readline.Instance
	out    io.Writer
	logger *zap.Logger
}

func New(catalog *scpi.Configuration, requestTimeout time.Duration, rootContext *actor.RootContext, masterActor *actor.PID, logger *zap.Logger) (*Console, error) {
	c := newConsole(catalog, requestTimeout, rootContext, masterActor, nil, logger)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          PROMPT,
		AutoComplete:    c.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c.rl = rl
	c.out = rl.Stdout()
	return c, nil
}

func newConsole(catalog *scpi.Configuration, requestTimeout time.Duration, rootContext *actor.RootContext, masterActor *actor.PID, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		catalog:     catalog,
		selection:   scpi.NewSelection(catalog),
		timeout:     requestTimeout,
		rootContext: rootContext,
		masterActor: masterActor,
		out:         out,
		logger:      logger.Named("console"),
	}
}

// Run reads commands until quit, EOF or ctx is done, then calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer cancel()

	c.printHelp()
	c.printSelection()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		if !c.Execute(line) {
			return
		}
	}
}

// Execute runs one console line and reports whether the loop should continue.
func (c *Console) Execute(line string) bool {
	input := strings.TrimLeft(line, " \t")
	if strings.TrimSpace(input) == "" {
		return true
	}
	// verbatim holds everything after the first space, used where blanks matter
	cmd, verbatim, _ := strings.Cut(input, " ")
	cmd = strings.TrimSpace(cmd)
	rest := strings.TrimSpace(verbatim)
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "help", "?":
		c.printHelp()
	case "list", "ls":
		c.cmdList()
	case "use":
		c.cmdUse(rest)
	case "channel", "ch":
		c.cmdChannel(args)
	case "arg":
		c.cmdArg(rest)
	case "text":
		c.selection.SetFreetext(verbatim)
		c.printSelection()
	case "show":
		c.printSelection()
	case "connect":
		c.cmdConnect(args)
	case "send":
		c.send(c.selection.Command())
	case "raw":
		if rest == "" {
			c.println("usage: raw <line>")
			return true
		}
		c.send(scpi.Terminate(rest))
	case "recv", "receive":
		c.cmdReceive()
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		c.println("bye")
		return false
	default:
		c.printf("unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) cmdList() {
	selected := c.selection.Selected()
	for i, cmd := range c.selection.Commands() {
		marker := " "
		if cmd.Equal(selected) {
			marker = "*"
		}
		ch := ""
		if cmd.PerChannel {
			ch = " [ch]"
		}
		c.printf("%s %2d  %s%s\n", marker, i+1, cmd.Name, ch)
	}
}

func (c *Console) cmdUse(rest string) {
	if rest == "" {
		c.println("usage: use <n|name>")
		return
	}
	commands := c.selection.Commands()
	if n, err := strconv.Atoi(rest); err == nil {
		if n < 1 || n > len(commands) {
			c.printf("no command %d, the catalog has %d\n", n, len(commands))
			return
		}
		c.selection.SelectCommand(commands[n-1])
		c.printSelection()
		return
	}
	cmd, ok := c.catalog.FindCommand(rest)
	if !ok {
		c.printf("no command named %q\n", rest)
		return
	}
	c.selection.SelectCommand(cmd)
	c.printSelection()
}

func (c *Console) cmdChannel(args []string) {
	if len(args) != 1 {
		c.printf("usage: channel <1..%d>\n", c.catalog.Device.Channels)
		return
	}
	ch, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		c.printf("invalid channel %q\n", args[0])
		return
	}
	c.selection.SelectChannel(uint8(ch))
	c.printSelection()
}

// cmdArg takes the argument literally, "#n" picks the n-th allowed value.
func (c *Console) cmdArg(rest string) {
	values := c.selection.Arguments()
	if rest == "" {
		for i, v := range values {
			c.printf("  #%d  %q\n", i+1, v)
		}
		return
	}
	arg := rest
	if index, ok := strings.CutPrefix(rest, "#"); ok {
		n, err := strconv.Atoi(index)
		if err != nil || n < 1 || n > len(values) {
			c.printf("no value %s, the command has %d\n", rest, len(values))
			return
		}
		arg = values[n-1]
	}
	c.selection.SelectArgument(arg)
	c.printSelection()
}

func (c *Console) cmdConnect(args []string) {
	address, err := c.connectAddress(args)
	if err != nil {
		c.printf("error: %s\n", err)
		return
	}
	c.printf("connecting to %s\n", address)
	res, err := c.request(domain.ConnectRequest{Address: address})
	if err != nil {
		c.printf("error: %s\n", err)
		return
	}
	resp, ok := res.(domain.ConnectResponse)
	if !ok {
		c.unexpected(res)
		return
	}
	if resp.HasResponseError() {
		c.printf("error: %s\n", resp.GetResponseError())
		return
	}
	c.printf("connected to %s\n", resp.Status.Peer)
}

// connectAddress accepts no argument (catalog address), IP:PORT, IP (catalog
// port) or IP PORT.
func (c *Console) connectAddress(args []string) (string, error) {
	var address string
	switch len(args) {
	case 0:
		address = c.catalog.Device.Address
	case 1:
		address = args[0]
		if _, err := scpi.ParseAddress(address); err != nil {
			_, port, splitErr := net.SplitHostPort(c.catalog.Device.Address)
			if splitErr != nil {
				return "", err
			}
			address = scpi.JoinAddress(args[0], port)
		}
	case 2:
		address = scpi.JoinAddress(args[0], args[1])
	default:
		return "", fmt.Errorf("usage: connect [ip[:port]] [port]")
	}
	if _, err := scpi.ParseAddress(address); err != nil {
		return "", fmt.Errorf("%w: %s", err, address)
	}
	return address, nil
}

// send writes line and reads the reply of queries right away.
func (c *Console) send(line string) {
	res, err := c.request(domain.SendCommandRequest{Command: line, AwaitReply: strings.Contains(line, "?")})
	if err != nil {
		c.printf("error: %s\n", err)
		return
	}
	resp, ok := res.(domain.SendCommandResponse)
	if !ok {
		c.unexpected(res)
		return
	}
	if resp.HasResponseError() {
		c.printf("error: %s\n", resp.GetResponseError())
		return
	}
	c.printf("> %s\n", strings.TrimRight(line, "\r\n"))
	if resp.Replied {
		c.printReply(resp.Reply)
	}
}

func (c *Console) cmdReceive() {
	res, err := c.request(domain.ReceiveRequest{})
	if err != nil {
		c.printf("error: %s\n", err)
		return
	}
	resp, ok := res.(domain.ReceiveResponse)
	if !ok {
		c.unexpected(res)
		return
	}
	if resp.HasResponseError() {
		c.printf("error: %s\n", resp.GetResponseError())
		return
	}
	c.printReply(resp.Reply)
}

func (c *Console) cmdStatus() {
	res, err := c.request(domain.GetSessionStatusRequest{})
	if err != nil {
		c.printf("error: %s\n", err)
		return
	}
	resp, ok := res.(domain.GetSessionStatusResponse)
	if !ok {
		c.unexpected(res)
		return
	}
	s := resp.Status
	if s.Connected {
		c.printf("connected: %s\n", s.Peer)
	} else {
		c.println("disconnected")
	}
	if s.LastCommand != "" {
		c.printf("last command: %s\n", s.LastCommand)
	}
	if s.LastReply != "" {
		c.printf("last reply:   %s\n", s.LastReply)
	}
	if s.LastError != "" {
		c.printf("last error:   %s\n", s.LastError)
	}
}

func (c *Console) request(msg domain.SessionRequest) (any, error) {
	res, err := c.rootContext.RequestFuture(c.masterActor, msg, c.timeout).Result()
	if err != nil {
		return nil, &scpi.IoError{Kind: scpi.TimedOut, Err: err}
	}
	return res, nil
}

func (c *Console) unexpected(res any) {
	c.logger.Error("unexpected session response", zap.Any("response", res))
	c.println("error: unexpected session response")
}

func (c *Console) printReply(reply string) {
	if reply == "" {
		c.println("< (no reply)")
		return
	}
	c.printf("< %s\n", strings.TrimRight(reply, "\r\n"))
}

func (c *Console) printSelection() {
	cmd := c.selection.Selected()
	c.printf("command:  %s\n", cmd.Name)
	if cmd.PerChannel {
		c.printf("channel:  %d/%d\n", c.selection.Channel(), c.catalog.Device.Channels)
	}
	c.printf("argument: %q\n", c.selection.Argument())
	if c.selection.NeedsFreetext() {
		c.printf("text:     %q\n", c.selection.Freetext())
	}
	c.printf("line:     %q\n", c.selection.Command())
}

func (c *Console) printHelp() {
	c.println(`Commands:
  list                        - List catalog commands
  use <n|name>                - Select a command
  channel <n>                 - Select the channel
  arg [value|#n]              - Set the argument as typed, #n picks an allowed value
  text <freetext>             - Set the free text, blanks kept as typed
  show                        - Show the selection and its expanded line
  connect [ip[:port]] [port]  - Connect to the instrument
  send                        - Send the selected command
  raw <line>                  - Send a line as typed
  recv                        - Read one reply line
  status                      - Show the session status
  quit                        - Exit`)
}

func (c *Console) completer() *readline.PrefixCompleter {
	names := func(string) []string {
		out := make([]string, 0, len(c.catalog.Commands))
		for _, cmd := range c.catalog.Commands {
			out = append(out, cmd.Name)
		}
		return out
	}
	args := func(string) []string {
		return c.selection.Arguments()
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("list"),
		readline.PcItem("use", readline.PcItemDynamic(names)),
		readline.PcItem("channel"),
		readline.PcItem("arg", readline.PcItemDynamic(args)),
		readline.PcItem("text"),
		readline.PcItem("show"),
		readline.PcItem("connect"),
		readline.PcItem("send"),
		readline.PcItem("raw"),
		readline.PcItem("recv"),
		readline.PcItem("status"),
		readline.PcItem("quit"),
	)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}
