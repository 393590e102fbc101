package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type              string `json:"type"`
	ProtocolVersion   string `json:"protocol_version"`
	Client            string `json:"client"`
	CommThreadCycleMs int    `json:"comm_thread_cycle_ms,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Simulator       string  `json:"simulator"`
	Timestep        float64 `json:"timestep,omitempty"`
}

// REQ (client -> server). Every request gets exactly one RESP with the same id.
type Request struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              uint64          `json:"id"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// RESP (server -> client)
type Response struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              uint64          `json:"id"`
	OK              bool            `json:"ok"`
	Error           *ErrorInfo      `json:"error,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
}

type SimulationTimeResult struct {
	Time float64 `json:"time"`
}

type ModelBaseParams struct {
	Joint string `json:"joint"`
}

type ModelBaseResult struct {
	Base string `json:"base"`
}

// StartParams names everything the simulator should stream back in state.
type StartParams struct {
	Bases        []string `json:"bases"`
	Joints       []string `json:"joints"`
	ForceSensors []string `json:"force_sensors"`
}

type StateParams = StartParams

// StateResult is a flattened simulator state. Valid is false until the
// simulator has data for every requested name.
type StateResult struct {
	Valid          bool                     `json:"valid"`
	Time           float64                  `json:"time"`
	JointPositions []float64                `json:"joint_positions"`
	JointTorques   []float64                `json:"joint_torques"`
	ForceSensors   map[string]SensorReading `json:"force_sensors"`
	Accelerometer  [3]float64               `json:"accelerometer"`
	Gyrometer      [3]float64               `json:"gyrometer"`
	BasePoses      []PoseMsg                `json:"base_poses"`
	BaseVelocities []TwistMsg               `json:"base_velocities"`
}

type SensorReading struct {
	Force  [3]float64 `json:"force"`
	Torque [3]float64 `json:"torque"`
}

// PoseMsg has the orientation as [w x y z].
type PoseMsg struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

type TwistMsg struct {
	Angular [3]float64 `json:"angular"`
	Linear  [3]float64 `json:"linear"`
}

// AddForceParams carries the wrench as [tx ty tz fx fy fz].
type AddForceParams struct {
	Body   string     `json:"body"`
	Wrench [6]float64 `json:"wrench"`
}

type JointTarget struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// SetTargetsParams.Mode is one of "position", "velocity" or "torque".
type SetTargetsParams struct {
	Mode    string        `json:"mode"`
	Targets []JointTarget `json:"targets"`
}
