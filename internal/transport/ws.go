package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/protocol"
)

var (
	// ErrClosed is returned by calls after Close.
	ErrClosed = errors.New("transport closed")

	// ErrDisconnected is returned when the connection dropped and reconnecting is disabled.
	ErrDisconnected = errors.New("simulator connection lost")
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Options configures a WSClient.
type Options struct {
	Host               string
	Port               int
	Path               string
	Timeout            time.Duration
	WaitUntilConnected bool
	DoNotReconnect     bool
	CommThreadCycle    time.Duration
	Clock              clock.Clock
}

func (o Options) url() string {
	path := o.Path
	if path == "" {
		path = "/sim"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(o.Host, strconv.Itoa(o.Port)), Path: path}
	return u.String()
}

// WSClient speaks the request/response protocol over a websocket. One
// request is in flight at a time.
type WSClient struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	nextID  uint64
	welcome protocol.WelcomeMsg
}

var _ Transport = (*WSClient)(nil)

// Dial connects to the simulator. With WaitUntilConnected it keeps retrying
// until ctx ends, otherwise a single attempt is made.
func Dial(ctx context.Context, opts Options, logger logging.Logger) (*WSClient, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	c := &WSClient{opts: opts, logger: logger}

	backoff := initialBackoff
	for {
		conn, welcome, err := c.dial(ctx)
		if err == nil {
			c.conn, c.welcome = conn, welcome
			return c, nil
		}
		if !opts.WaitUntilConnected {
			return nil, err
		}
		logger.Debugw("simulator not reachable, retrying", "url", opts.url(), "in", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "wait for simulator")
		case <-opts.Clock.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Simulator is the name the peer announced.
func (c *WSClient) Simulator() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome.Simulator
}

// dial opens a connection and completes the HELLO/WELCOME handshake.
func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, protocol.WelcomeMsg, error) {
	var welcome protocol.WelcomeMsg
	d := websocket.Dialer{HandshakeTimeout: c.opts.Timeout}
	conn, resp, err := d.DialContext(ctx, c.opts.url(), http.Header{})
	if err != nil {
		return nil, welcome, errors.Wrapf(err, "dial %s", c.opts.url())
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:              protocol.TypeHello,
		ProtocolVersion:   protocol.Version,
		Client:            "simbridge",
		CommThreadCycleMs: int(c.opts.CommThreadCycle / time.Millisecond),
	}
	_ = conn.SetWriteDeadline(c.deadline(ctx))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, welcome, errors.Wrap(err, "send hello")
	}

	_ = conn.SetReadDeadline(c.deadline(ctx))
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, welcome, errors.Wrap(err, "read welcome")
	}
	if welcome.Type != protocol.TypeWelcome || !protocol.IsSupportedVersion(welcome.ProtocolVersion) {
		_ = conn.Close()
		return nil, welcome, errors.Errorf("unsupported simulator handshake %s/%s", welcome.Type, welcome.ProtocolVersion)
	}
	c.logger.Infow("connected to simulator", "url", c.opts.url(), "simulator", welcome.Simulator)
	return conn, welcome, nil
}

func (c *WSClient) deadline(ctx context.Context) time.Time {
	var dl time.Time
	if c.opts.Timeout > 0 {
		dl = time.Now().Add(c.opts.Timeout)
	}
	if ctxDl, ok := ctx.Deadline(); ok && (dl.IsZero() || ctxDl.Before(dl)) {
		dl = ctxDl
	}
	return dl
}

// call performs one round trip. A broken connection is dropped and the next
// call reconnects unless DoNotReconnect is set.
func (c *WSClient) call(ctx context.Context, method string, params, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		if c.opts.DoNotReconnect {
			return ErrDisconnected
		}
		conn, welcome, err := c.dial(ctx)
		if err != nil {
			return errors.Wrap(err, "reconnect")
		}
		c.conn, c.welcome = conn, welcome
	}

	c.nextID++
	req := protocol.Request{
		Type:            protocol.TypeReq,
		ProtocolVersion: protocol.Version,
		ID:              c.nextID,
		Method:          method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return errors.Wrapf(err, "encode %s params", method)
		}
		req.Params = raw
	}

	conn := c.conn
	dl := c.deadline(ctx)
	_ = conn.SetWriteDeadline(dl)
	_ = conn.SetReadDeadline(dl)
	// Cancelling ctx expires the deadlines so a silent peer cannot hold mu.
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = conn.SetWriteDeadline(now)
		_ = conn.SetReadDeadline(now)
	})
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		c.drop()
		return c.callErr(ctx, err, "send %s", method)
	}

	for {
		var resp protocol.Response
		if err := conn.ReadJSON(&resp); err != nil {
			c.drop()
			return c.callErr(ctx, err, "await %s", method)
		}
		if resp.Type != protocol.TypeResp || resp.ID != req.ID {
			// Stale answer to a request that timed out earlier.
			continue
		}
		if !resp.OK {
			if resp.Error == nil {
				return errors.Errorf("%s failed", method)
			}
			return errors.Wrap(resp.Error, method)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return errors.Wrapf(err, "decode %s result", method)
			}
		}
		return nil
	}
}

func (c *WSClient) callErr(ctx context.Context, err error, format, method string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return errors.Wrapf(err, format, method)
}

// drop must be called with mu held.
func (c *WSClient) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *WSClient) SimulationTime(ctx context.Context) (float64, error) {
	var res protocol.SimulationTimeResult
	if err := c.call(ctx, protocol.MethodSimulationTime, nil, &res); err != nil {
		return 0, err
	}
	return res.Time, nil
}

func (c *WSClient) ModelBase(ctx context.Context, joint string) (string, error) {
	var res protocol.ModelBaseResult
	if err := c.call(ctx, protocol.MethodModelBase, protocol.ModelBaseParams{Joint: joint}, &res); err != nil {
		return "", err
	}
	return res.Base, nil
}

func (c *WSClient) StartSimulation(ctx context.Context, bases, joints, forceSensors []string) error {
	return c.call(ctx, protocol.MethodStart, protocol.StartParams{
		Bases:        bases,
		Joints:       joints,
		ForceSensors: forceSensors,
	}, nil)
}

func (c *WSClient) State(ctx context.Context, req StateRequest) (*dynamo.Snapshot, bool, error) {
	var res protocol.StateResult
	err := c.call(ctx, protocol.MethodState, protocol.StateParams{
		Bases:        req.Bases,
		Joints:       req.Joints,
		ForceSensors: req.ForceSensors,
	}, &res)
	if err != nil {
		return nil, false, err
	}
	if !res.Valid {
		return nil, false, nil
	}
	return res.Snapshot(), true, nil
}

func (c *WSClient) Step(ctx context.Context) error {
	return c.call(ctx, protocol.MethodStep, nil, nil)
}

func (c *WSClient) AddForce(ctx context.Context, body string, w dynamo.Wrench) error {
	return c.call(ctx, protocol.MethodAddForce, protocol.AddForceParams{
		Body:   body,
		Wrench: protocol.WrenchArray(w),
	}, nil)
}

func (c *WSClient) SetJointTargets(ctx context.Context, mode dynamo.ActuationMode, targets []dynamo.JointTarget) error {
	wire := make([]protocol.JointTarget, len(targets))
	for i, t := range targets {
		wire[i] = protocol.JointTarget{Name: t.Name, Value: t.Value}
	}
	return c.call(ctx, protocol.MethodSetTargets, protocol.SetTargetsParams{Mode: mode.String(), Targets: wire}, nil)
}

func (c *WSClient) StopSimulation(ctx context.Context) error {
	return c.call(ctx, protocol.MethodStop, nil, nil)
}

func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
