package armature

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Animatable channels.
const (
	PathLocation  = "location"
	PathRotation  = "rotation_quaternion"
	PathInfluence = "influence"
)

// Keyframe is one key of an F-curve.
type Keyframe struct {
	Frame int
	Value float64
}

// FCurve animates one component of one property.
type FCurve struct {
	DataPath string
	Index    int
	Keys     []Keyframe
}

// Insert adds a key, replacing the value of an existing key at frame.
func (c *FCurve) Insert(frame int, value float64) {
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Frame >= frame })
	if i < len(c.Keys) && c.Keys[i].Frame == frame {
		c.Keys[i].Value = value
		return
	}
	c.Keys = append(c.Keys, Keyframe{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = Keyframe{Frame: frame, Value: value}
}

// Evaluate returns the linearly interpolated value at frame, holding the
// first and last keys outside their range.
func (c *FCurve) Evaluate(frame float64) float64 {
	if len(c.Keys) == 0 {
		return 0
	}
	prev, next, t := bracket(c.Keys, frame)
	k0, k1 := c.Keys[prev], c.Keys[next]
	return k0.Value + t*(k1.Value-k0.Value)
}

// bracket finds the keys around frame and the blend factor between them.
func bracket(keys []Keyframe, frame float64) (prev, next int, t float64) {
	for i := range keys {
		if float64(keys[i].Frame) > frame {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next {
		return prev, next, 0
	}
	k0, k1 := keys[prev], keys[next]
	if frame < float64(k0.Frame) {
		return prev, prev, 0
	}
	return prev, next, (frame - float64(k0.Frame)) / float64(k1.Frame-k0.Frame)
}

type curveKey struct {
	path  string
	index int
}

// Action is the keyframe store of an armature.
type Action struct {
	curves map[curveKey]*FCurve
	order  []curveKey
}

// NewAction creates an empty action.
func NewAction() *Action {
	return &Action{curves: make(map[curveKey]*FCurve)}
}

// Curve returns the F-curve for path/index, or nil.
func (a *Action) Curve(path string, index int) *FCurve {
	return a.curves[curveKey{path, index}]
}

// Curves returns all F-curves in creation order.
func (a *Action) Curves() []*FCurve {
	out := make([]*FCurve, len(a.order))
	for i, k := range a.order {
		out[i] = a.curves[k]
	}
	return out
}

// Insert keys one component, creating the F-curve on first use.
func (a *Action) Insert(path string, index, frame int, value float64) {
	k := curveKey{path, index}
	c, ok := a.curves[k]
	if !ok {
		c = &FCurve{DataPath: path, Index: index}
		a.curves[k] = c
		a.order = append(a.order, k)
	}
	c.Insert(frame, value)
}

// EvaluateQuat evaluates a 4-channel rotation path by slerping between the
// bracketing keys. ok is false when the path is not animated.
func (a *Action) EvaluateQuat(path string, frame float64) (math.Quat, bool) {
	w := a.Curve(path, 0)
	if w == nil || len(w.Keys) == 0 {
		return math.QuatIdentity(), false
	}
	at := func(f float64) math.Quat {
		q := math.Quat{W: w.Evaluate(f)}
		if c := a.Curve(path, 1); c != nil {
			q.X = c.Evaluate(f)
		}
		if c := a.Curve(path, 2); c != nil {
			q.Y = c.Evaluate(f)
		}
		if c := a.Curve(path, 3); c != nil {
			q.Z = c.Evaluate(f)
		}
		return q
	}
	prev, next, t := bracket(w.Keys, frame)
	q0 := at(float64(w.Keys[prev].Frame))
	if prev == next {
		return q0, true
	}
	q1 := at(float64(w.Keys[next].Frame))
	return q0.Slerp(q1, t), true
}

func (a *Action) renameBone(old, name string) {
	prefix := fmt.Sprintf("pose.bones[%q].", old)
	repl := fmt.Sprintf("pose.bones[%q].", name)
	for i, k := range a.order {
		if !strings.HasPrefix(k.path, prefix) {
			continue
		}
		c := a.curves[k]
		delete(a.curves, k)
		k.path = repl + strings.TrimPrefix(k.path, prefix)
		c.DataPath = k.path
		a.curves[k] = c
		a.order[i] = k
	}
}

// BonePath returns the data path of a bone property.
func BonePath(bone, prop string) string {
	return fmt.Sprintf("pose.bones[%q].%s", bone, prop)
}

// ConstraintPath returns the data path of a bone constraint property.
func ConstraintPath(bone, constraint, prop string) string {
	return fmt.Sprintf("pose.bones[%q].constraints[%q].%s", bone, constraint, prop)
}

// KeyLocation keys the pose location of b at frame.
func (a *Armature) KeyLocation(b *Bone, frame int) {
	path := BonePath(b.Name, PathLocation)
	for i, v := range b.Location.Array() {
		a.Action.Insert(path, i, frame, v)
	}
}

// KeyRotation keys the pose rotation of b at frame (W, X, Y, Z order).
func (a *Armature) KeyRotation(b *Bone, frame int) {
	path := BonePath(b.Name, PathRotation)
	q := b.Rotation
	for i, v := range [4]float64{q.W, q.X, q.Y, q.Z} {
		a.Action.Insert(path, i, frame, v)
	}
}

// KeyInfluence keys the influence of constraint c on b at frame.
func (a *Armature) KeyInfluence(b *Bone, c *Constraint, frame int) {
	a.Action.Insert(ConstraintPath(b.Name, c.Name, PathInfluence), 0, frame, c.Influence)
}

// ApplyFrame sets every animated property to its value at frame.
func (a *Armature) ApplyFrame(frame float64) {
	for _, b := range a.bones {
		if c := a.Action.Curve(BonePath(b.Name, PathLocation), 0); c != nil {
			var loc [3]float64
			for i := range loc {
				if c := a.Action.Curve(BonePath(b.Name, PathLocation), i); c != nil {
					loc[i] = c.Evaluate(frame)
				}
			}
			b.Location = math.Vec3FromArray(loc)
		}
		if q, ok := a.Action.EvaluateQuat(BonePath(b.Name, PathRotation), frame); ok {
			b.Rotation = q.Normalize()
		}
		for _, con := range b.Constraints {
			if c := a.Action.Curve(ConstraintPath(b.Name, con.Name, PathInfluence), 0); c != nil {
				con.Influence = c.Evaluate(frame)
			}
		}
	}
	a.dirty = true
}
