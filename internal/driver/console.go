package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
)

// Target is the part of the loop the console can act on.
type Target interface {
	SetExternalForce(body string, w dynamo.Wrench) bool
	RemoveExternalForce(body string) bool
	ApplyImpact(body string, impulse dynamo.Wrench) bool
	Stats() bridge.Stats
}

var _ Target = (*bridge.Loop)(nil)

const help = `commands:
  next | n                          advance one control tick while paused
  play | p                          leave step-by-step mode
  step | s                          toggle step-by-step mode
  stop | q                          stop the simulation
  force <body> tx ty tz fx fy fz    apply a persistent wrench
  impact <body> tx ty tz fx fy fz   apply an impulse over one control tick
  remove <body>                     remove a persistent wrench
  status                            print loop counters
`

// Console reads commands, one per line.
type Console struct {
	flags  *Flags
	target Target
	out    io.Writer
	logger logging.Logger
}

func NewConsole(flags *Flags, target Target, out io.Writer, logger logging.Logger) *Console {
	return &Console{flags: flags, target: target, out: out, logger: logger}
}

// Run executes lines from in until stop, EOF or ctx ends. Bad commands are
// reported on out and do not end the session.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for !c.flags.Done() {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.Exec(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
	return nil
}

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "next", "n":
		c.flags.NextStep()
	case "play", "p":
		c.flags.SetStepByStep(false)
		c.flags.Play()
	case "step", "s":
		on := c.flags.ToggleStepByStep()
		fmt.Fprintf(c.out, "step-by-step: %v\n", on)
	case "stop", "q", "quit":
		c.logger.Info("stop requested from console")
		c.flags.Stop()
	case "force", "impact":
		body, w, err := parseWrench(args)
		if err != nil {
			return errors.Wrap(err, cmd)
		}
		if cmd == "force" {
			c.target.SetExternalForce(body, w)
		} else {
			c.target.ApplyImpact(body, w)
		}
	case "remove":
		if len(args) != 1 {
			return errors.New("usage: remove <body>")
		}
		if !c.target.RemoveExternalForce(args[0]) {
			fmt.Fprintf(c.out, "no force on %s\n", args[0])
		}
	case "status":
		s := c.target.Stats()
		fmt.Fprintf(c.out, "%s t=%.4f iter=%d ticks=%d actuated=%d missed=%d concurrent=%d step-by-step=%v\n",
			s.State, s.SimTime, s.Iteration, s.ControlTicks, s.Actuations, s.MissedSteps, s.ConcurrentAdvances,
			c.flags.StepByStep())
	case "help", "h", "?":
		fmt.Fprint(c.out, help)
	default:
		return errors.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// parseWrench reads "<body> tx ty tz fx fy fz".
func parseWrench(args []string) (string, dynamo.Wrench, error) {
	if len(args) != 7 {
		return "", dynamo.Wrench{}, errors.New("usage: <body> tx ty tz fx fy fz")
	}
	v := make([]float64, 6)
	for i, s := range args[1:] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", dynamo.Wrench{}, errors.Wrapf(err, "component %d", i)
		}
		v[i] = f
	}
	w, err := dynamo.WrenchFromSlice(v)
	return args[0], w, err
}
