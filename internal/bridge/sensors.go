package bridge

import (
	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/robot"
)

// updateData writes snap into the controller robots and their shadows.
// Joint velocities of the shadows are finite differences against the
// previous control tick divided by one simulation timestep. Control ticks
// are frameskip steps apart, so with frameskip > 1 the value is the
// per-tick displacement over simDt, frameskip times the physical velocity.
// The first tick after bootstrap gives zero.
func (l *Loop) updateData(snap *dynamo.Snapshot) {
	for i, b := range l.bindings {
		pose := snap.BasePoses[i]
		vel := snap.BaseVelocities[i]
		sensor := robot.BodySensor{
			Position:        pose.Translation,
			Orientation:     pose.Rotation,
			LinearVelocity:  vel.Linear,
			AngularVelocity: vel.Angular,
		}

		r := b.Robot
		encoders := b.Slice(snap.JointPositions)
		torques := b.Slice(snap.JointTorques)
		r.BodySensor = sensor
		r.SetEncoderValues(encoders)
		r.SetJointTorques(torques)
		l.rt.SetWrenches(r.Name(), b.Wrenches(snap.ForceSensors))

		shadow := b.Shadow
		shadow.BodySensor = sensor
		shadow.SetEncoderValues(encoders)
		shadow.SetJointTorques(torques)

		prev := l.prevEncoders[i]
		if len(prev) != len(encoders) {
			prev = encoders
		}
		joints := shadow.Joints()
		if len(joints) > 0 && joints[0].Type == robot.Free {
			copy(shadow.Alpha[0], vel.Slice())
		}
		for j, name := range r.RefJointOrder() {
			idx, ok := shadow.JointIndexByName(name)
			if !ok || len(shadow.Q[idx]) != 1 {
				continue
			}
			shadow.Q[idx][0] = encoders[j]
			shadow.Alpha[idx][0] = (encoders[j] - prev[j]) / l.simDt
		}
		l.prevEncoders[i] = encoders
		shadow.PosW = pose
	}
	l.rt.SetSensorLinearAcceleration(snap.Accelerometer)
}
