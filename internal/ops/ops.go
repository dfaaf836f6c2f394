// Package ops exposes the user-triggered rig operations. Each one runs a
// component against explicit handles and reports a status message plus an
// outcome, the way an editor operator would.
package ops

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/ikchain"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/placement"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/internal/snap"
	"github.com/Faultbox/midgard-rig/internal/twist"
)

// Outcome is the structured result of an operation.
type Outcome string

const (
	Finished  Outcome = "FINISHED"
	Cancelled Outcome = "CANCELLED"
)

// Level is the severity of the status message.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Report is what an operation hands back to the caller.
type Report struct {
	Outcome Outcome
	Level   Level
	Message string
	Err     error
}

// OK reports whether the operation finished.
func (r Report) OK() bool { return r.Outcome == Finished }

func (r Report) String() string {
	return fmt.Sprintf("%s [%s] %s", r.Outcome, r.Level, r.Message)
}

// Runner holds the configuration shared by the operations.
type Runner struct {
	cfg *config.Config
}

// NewRunner returns a runner for cfg. A nil cfg uses the defaults.
func NewRunner(cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{cfg: cfg}
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config { return r.cfg }

// GenerateRigPlacement places the standard skeleton inside mesh.
func (r *Runner) GenerateRigPlacement(mesh *armature.Mesh, arm *armature.Armature) Report {
	res, err := placement.New(r.cfg.Placement).Place(mesh, arm)
	if err != nil {
		return failed("generate_rig_placement", err, LevelError)
	}
	rep := finished("generate_rig_placement", fmt.Sprintf("Rig created for armature: %s", arm.Name))
	if len(res.Fallbacks) > 0 {
		logger.Debug("placement used fallbacks", zap.Strings("anchors", res.Fallbacks))
	}
	return rep
}

// GenerateIKChain creates or updates the IK controls for the selected bone.
// chainCount <= 0 uses the configured default.
func (r *Runner) GenerateIKChain(arm *armature.Armature, selected *armature.Bone, chainCount int) Report {
	if chainCount <= 0 {
		chainCount = r.cfg.IK.DefaultChainCount
	}
	res, err := ikchain.New(r.cfg.IK).Generate(arm, selected, chainCount)
	if err != nil {
		return failed("generate_ik_chain", err, LevelError)
	}
	return finished("generate_ik_chain", fmt.Sprintf("Ik bone created: %s", res.Target.Name))
}

// SnapIKFK bakes the chain of active at frame so switching to FK does not pop.
func (r *Runner) SnapIKFK(arm *armature.Armature, active *armature.Bone, frame int) Report {
	res, err := snap.New(r.cfg.Snap).Snap(arm, active, frame)
	if err != nil {
		return failed("snap_ik_fk", err, LevelWarning)
	}
	return finished("snap_ik_fk", fmt.Sprintf("Snapped %s at frame %d", res.Chain.Effector.Name, frame))
}

// GenerateTwistUpper adds twist bones to an upper limb segment.
func (r *Runner) GenerateTwistUpper(arm *armature.Armature, selected *armature.Bone) Report {
	res, err := twist.New(r.cfg.Twist).Upper(arm, selected)
	if err != nil {
		return failed("generate_twist_upper", err, LevelError)
	}
	return finished("generate_twist_upper", fmt.Sprintf("%d twist bones created for %s", len(res.Bones), selected.Name))
}

// GenerateTwistLower adds twist bones to a lower limb segment driven by reference.
func (r *Runner) GenerateTwistLower(arm *armature.Armature, selected, reference *armature.Bone) Report {
	res, err := twist.New(r.cfg.Twist).Lower(arm, selected, reference)
	if err != nil {
		return failed("generate_twist_lower", err, LevelError)
	}
	return finished("generate_twist_lower", fmt.Sprintf("%d twist bones created for %s", len(res.Bones), selected.Name))
}

// BindMesh parents mesh to arm with envelope weights.
func (r *Runner) BindMesh(mesh *armature.Mesh, arm *armature.Armature) Report {
	res, err := placement.BindEnvelopeWeights(mesh, arm, r.cfg.Bind)
	if err != nil {
		return failed("bind_mesh", err, LevelError)
	}
	if res.Nearest > 0 {
		logger.Debug("vertices outside every envelope", zap.Int("count", res.Nearest))
	}
	return finished("bind_mesh", fmt.Sprintf("Parented %s to %s", mesh.Name, arm.Name))
}

func finished(op, msg string) Report {
	logger.Info(msg, zap.String("op", op))
	return Report{Outcome: Finished, Level: LevelInfo, Message: msg}
}

// failed maps err to a report. Validation problems use the operation's
// level; configuration problems and anything unexpected are errors.
func failed(op string, err error, validation Level) Report {
	rep := Report{Outcome: Cancelled, Level: LevelError, Message: capitalize(rigerr.Message(err)), Err: err}
	if errors.Is(err, rigerr.ErrValidation) {
		rep.Level = validation
	}
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if rep.Level == LevelWarning {
		logger.Warn(rep.Message, fields...)
	} else {
		logger.Error(rep.Message, fields...)
	}
	return rep
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
