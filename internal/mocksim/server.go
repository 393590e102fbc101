package mocksim

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/logging"
	"github.com/san-kum/simbridge/internal/protocol"
)

const (
	DefaultPath  = "/sim"
	handshakeTTL = 5 * time.Second
	writeTTL     = 5 * time.Second
)

type Server struct {
	world *World
	log   logging.Logger
	path  string

	upgrader websocket.Upgrader
}

func NewServer(w *World, logger logging.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		path:  DefaultPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) World() *World { return s.world }

// Handler routes the simulator endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.serveWS)
	return mux
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: handshakeTTL}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infow("mock simulator listening", "addr", ln.Addr().String(), "path", s.path,
		"timestep", s.world.Timestep())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hello, ok := s.handshake(conn)
	if !ok {
		return
	}
	s.log.Infow("controller connected", "client", hello.Client, "remote", r.RemoteAddr)
	defer s.log.Infow("controller disconnected", "client", hello.Client)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeReq {
			continue
		}
		var req protocol.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}

		resp := protocol.Response{Type: protocol.TypeResp, ProtocolVersion: protocol.Version, ID: req.ID, OK: true}
		result, einfo := s.handle(req)
		if einfo != nil {
			resp.OK, resp.Error = false, einfo
			s.log.Debugw("request failed", "method", req.Method, "id", req.ID, "error", einfo)
		} else if result != nil {
			b, err := json.Marshal(result)
			if err != nil {
				resp.OK, resp.Error = false, &protocol.ErrorInfo{Code: protocol.ErrInternal, Message: err.Error()}
			}
			resp.Result = b
		}
		if err := writeJSON(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTTL))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, false
	}
	if !protocol.IsSupportedVersion(hello.ProtocolVersion) {
		closeWith(conn, "bad protocol_version")
		return hello, false
	}
	_ = conn.SetReadDeadline(time.Time{})

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Simulator:       "mocksim",
		Timestep:        s.world.Timestep(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return hello, false
	}
	return hello, true
}

func (s *Server) handle(req protocol.Request) (interface{}, *protocol.ErrorInfo) {
	if !protocol.IsSupportedVersion(req.ProtocolVersion) {
		return nil, badRequest(errors.Errorf("unsupported protocol_version %q", req.ProtocolVersion))
	}
	w := s.world
	switch req.Method {
	case protocol.MethodSimulationTime:
		return protocol.SimulationTimeResult{Time: w.Time()}, nil

	case protocol.MethodModelBase:
		var p protocol.ModelBaseParams
		if err := decode(req.Params, &p); err != nil {
			return nil, badRequest(err)
		}
		b, err := w.ModelBase(p.Joint)
		if err != nil {
			return nil, errorInfo(err)
		}
		return protocol.ModelBaseResult{Base: b}, nil

	case protocol.MethodStart:
		var p protocol.StartParams
		if err := decode(req.Params, &p); err != nil {
			return nil, badRequest(err)
		}
		return nil, errorInfo(w.Start(p.Bases, p.Joints, p.ForceSensors))

	case protocol.MethodState:
		var p protocol.StateParams
		if err := decode(req.Params, &p); err != nil {
			return nil, badRequest(err)
		}
		snap, valid, err := w.State(p.Bases, p.Joints, p.ForceSensors)
		if err != nil {
			return nil, errorInfo(err)
		}
		return protocol.FromSnapshot(snap, valid), nil

	case protocol.MethodStep:
		return nil, errorInfo(w.Step())

	case protocol.MethodAddForce:
		var p protocol.AddForceParams
		if err := decode(req.Params, &p); err != nil {
			return nil, badRequest(err)
		}
		return nil, errorInfo(w.AddForce(p.Body, protocol.ArrayWrench(p.Wrench)))

	case protocol.MethodSetTargets:
		var p protocol.SetTargetsParams
		if err := decode(req.Params, &p); err != nil {
			return nil, badRequest(err)
		}
		mode, ok := protocol.ParseMode(p.Mode)
		if !ok {
			return nil, badRequest(errors.Errorf("unknown mode %q", p.Mode))
		}
		targets := make([]dynamo.JointTarget, len(p.Targets))
		for i, t := range p.Targets {
			targets[i] = dynamo.JointTarget{Name: t.Name, Value: t.Value}
		}
		return nil, errorInfo(w.SetTargets(mode, targets))

	case protocol.MethodStop:
		w.Stop()
		return nil, nil
	}
	return nil, &protocol.ErrorInfo{Code: protocol.ErrUnknownMethod, Message: req.Method}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(raw, v)
}

func badRequest(err error) *protocol.ErrorInfo {
	return &protocol.ErrorInfo{Code: protocol.ErrBadRequest, Message: err.Error()}
}

func errorInfo(err error) *protocol.ErrorInfo {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotStarted):
		return &protocol.ErrorInfo{Code: protocol.ErrNotStarted, Message: err.Error()}
	case errors.Is(err, ErrUnknownName):
		return &protocol.ErrorInfo{Code: protocol.ErrUnknownName, Message: err.Error()}
	default:
		return &protocol.ErrorInfo{Code: protocol.ErrInternal, Message: err.Error()}
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTTL))
	return conn.WriteMessage(websocket.TextMessage, b)
}
