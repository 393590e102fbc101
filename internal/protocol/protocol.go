package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReq     = "REQ"
	TypeResp    = "RESP"
)

// Methods served by a simulator.
const (
	MethodSimulationTime = "simulation_time"
	MethodModelBase      = "model_base"
	MethodStart          = "start_simulation"
	MethodState          = "state"
	MethodStep           = "step"
	MethodAddForce       = "add_force"
	MethodSetTargets     = "set_joint_targets"
	MethodStop           = "stop_simulation"
)

var supportedVersions = map[string]struct{}{
	Version: {},
}

// IsSupportedVersion reports whether a peer speaking v can be served.
func IsSupportedVersion(v string) bool {
	_, ok := supportedVersions[v]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
