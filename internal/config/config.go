// Package config holds the rig heuristics and tool settings.
//
// Every numeric heuristic the rig operations use lives here so it can be
// inspected and overridden from a YAML file or the environment. Lengths in
// PlacementConfig are expressed in "tall" units (mesh height / HeightDivisor).
package config

import (
	"github.com/Faultbox/midgard-rig/internal/rigerr"
)

// Config holds all rig tool settings.
type Config struct {
	Placement PlacementConfig `yaml:"placement"`
	IK        IKConfig        `yaml:"ik"`
	Snap      SnapConfig      `yaml:"snap"`
	Twist     TwistConfig     `yaml:"twist"`
	Bind      BindConfig      `yaml:"bind"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PlacementConfig holds the skeletal placement heuristics.
type PlacementConfig struct {
	HeightDivisor float64 `yaml:"height_divisor" env:"RIG_HEIGHT_DIVISOR"`

	// Spine chain, bottom to top.
	SpineBones     []string  `yaml:"spine_bones"`
	SpineLengths   []float64 `yaml:"spine_lengths"`
	SpineFallbackY []float64 `yaml:"spine_fallback_y"`
	SpineStart     float64   `yaml:"spine_start"`
	SpineBand      float64   `yaml:"spine_band"`
	SpineHeadBlend float64   `yaml:"spine_head_blend"` // weight of max y; min y gets the rest
	CenterlineBand float64   `yaml:"centerline_band"`

	// Arm chain: shoulder, upper arm, forearm, hand.
	ArmBones       []string   `yaml:"arm_bones"`
	ArmRoot        string     `yaml:"arm_root"` // parent of a newly created shoulder
	ArmpitMinX     float64    `yaml:"armpit_min_x"`
	ArmpitOffset   [3]float64 `yaml:"armpit_offset"`
	ShoulderLength float64    `yaml:"shoulder_length"`
	ShoulderLift   float64    `yaml:"shoulder_lift"`
	HandBand       float64    `yaml:"hand_band"`
	ElbowBand      float64    `yaml:"elbow_band"`
	WristWidth     float64    `yaml:"wrist_width"` // fraction of half width
	WristBand      float64    `yaml:"wrist_band"`
	WristInset     float64    `yaml:"wrist_inset"`

	// Leg chain: thigh, shin, foot, toe.
	LegBones    []string `yaml:"leg_bones"`
	LegRoot     string   `yaml:"leg_root"` // parent of a newly created thigh
	HipX        float64  `yaml:"hip_x"`
	LegBand     float64  `yaml:"leg_band"`
	KneeHeight  float64  `yaml:"knee_height"`
	KneeInset   float64  `yaml:"knee_inset"`
	AnkleHeight float64  `yaml:"ankle_height"`
	AnkleInset  float64  `yaml:"ankle_inset"`
	ToeHeight   float64  `yaml:"toe_height"`
	ToeInset    float64  `yaml:"toe_inset"`
	ToeLength   float64  `yaml:"toe_length"`

	// Anchors used when a vertex band is empty, in tall units.
	Fallback FallbackAnchors `yaml:"fallback"`

	EnvelopeRatio float64 `yaml:"envelope_ratio"`
	SpineColor    string  `yaml:"spine_color"`
	ArmColor      string  `yaml:"arm_color"`
	LegColor      string  `yaml:"leg_color"`

	// NearBoneThreshold is the distance used by vertex selection near bones.
	NearBoneThreshold float64 `yaml:"near_bone_threshold"`
}

// FallbackAnchors are anatomical points in tall units (x from centerline,
// y depth, z height above the ground).
type FallbackAnchors struct {
	Armpit [3]float64 `yaml:"armpit"`
	Hand   [3]float64 `yaml:"hand"`
	Wrist  [3]float64 `yaml:"wrist"`
	Knee   [3]float64 `yaml:"knee"`
	Ankle  [3]float64 `yaml:"ankle"`
	Toe    [3]float64 `yaml:"toe"`
}

// IKConfig holds the IK chain generator settings.
type IKConfig struct {
	DefaultChainCount  int     `yaml:"default_chain_count" env:"RIG_CHAIN_COUNT"`
	MinChainCount      int     `yaml:"min_chain_count"`
	MaxChainCount      int     `yaml:"max_chain_count"`
	TargetLength       float64 `yaml:"target_length"`
	PoleLength         float64 `yaml:"pole_length"`
	PoleDistanceFactor float64 `yaml:"pole_distance_factor"`
	UpThreshold        float64 `yaml:"up_threshold"` // effector tail height above which the target stub points along the chain
	PoleAngleThreshold float64 `yaml:"pole_angle_threshold"`
	TargetPrefix       string  `yaml:"target_prefix"`
	PolePrefix         string  `yaml:"pole_prefix"`
}

// SnapConfig holds the IK/FK reconciler settings.
type SnapConfig struct {
	PoleDistanceFactor float64 `yaml:"pole_distance_factor"`
	KeyPole            bool    `yaml:"key_pole"`
}

// TwistConfig holds the twist bone synthesizer settings.
type TwistConfig struct {
	Count              int       `yaml:"count"`
	Influences         []float64 `yaml:"influences"`
	Prefix             string    `yaml:"prefix"`
	NameClip           int       `yaml:"name_clip"`
	CandidateTolerance float64   `yaml:"candidate_tolerance"`
}

// BindConfig holds the envelope weight binding settings.
type BindConfig struct {
	MaxInfluences int     `yaml:"max_influences" env:"RIG_BIND_MAX_INFLUENCES"` // bones per vertex
	MinWeight     float64 `yaml:"min_weight"`                                   // dropped before normalizing
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" env:"RIG_LOG_LEVEL"`
	LogFile string `yaml:"log_file" env:"RIG_LOG_FILE"`
}

// Default returns a Config with the values tuned for a standing human mesh
// facing -Y with its feet at z=0.
func Default() *Config {
	return &Config{
		Placement: PlacementConfig{
			HeightDivisor:  57,
			SpineBones:     []string{"spine", "spine.001", "spine.002", "spine.003", "spine.004", "spine.005", "spine.006"},
			SpineLengths:   []float64{2.5, 3, 6.5, 4.5, 2.5, 1.5, 6},
			SpineFallbackY: []float64{0.5, 0, -0.3, 0, 1.2, 0.5, 0.08},
			SpineStart:     30.5,
			SpineBand:      0.5,
			SpineHeadBlend: 0.55,
			CenterlineBand: 3.5,

			ArmBones:       []string{"shoulder.L", "upper_arm.L", "forearm.L", "hand.L"},
			ArmRoot:        "spine.003",
			ArmpitMinX:     3.5,
			ArmpitOffset:   [3]float64{1, 0, -2},
			ShoulderLength: 4,
			ShoulderLift:   1,
			HandBand:       1,
			ElbowBand:      1,
			WristWidth:     0.9,
			WristBand:      1,
			WristInset:     1,

			LegBones:    []string{"thigh.L", "shin.L", "foot.L", "toe.L"},
			LegRoot:     "spine",
			HipX:        2.5,
			LegBand:     1,
			KneeHeight:  15,
			KneeInset:   1,
			AnkleHeight: 4,
			AnkleInset:  1.5,
			ToeHeight:   1,
			ToeInset:    2,
			ToeLength:   2,

			Fallback: FallbackAnchors{
				Armpit: [3]float64{5.5, 0, 45},
				Hand:   [3]float64{28, 0, 45},
				Wrist:  [3]float64{25, 0, 45},
				Knee:   [3]float64{2.5, -0.5, 15},
				Ankle:  [3]float64{2.5, 0.5, 4},
				Toe:    [3]float64{2.5, -3, 1},
			},

			EnvelopeRatio:     0.25,
			SpineColor:        "THEME04",
			ArmColor:          "THEME05",
			LegColor:          "THEME11",
			NearBoneThreshold: 0.01,
		},
		IK: IKConfig{
			DefaultChainCount:  2,
			MinChainCount:      1,
			MaxChainCount:      10,
			TargetLength:       0.1,
			PoleLength:         0.1,
			PoleDistanceFactor: -3,
			UpThreshold:        0.66,
			PoleAngleThreshold: 1,
			TargetPrefix:       "ik_",
			PolePrefix:         "pole_",
		},
		Snap: SnapConfig{
			PoleDistanceFactor: -3,
			KeyPole:            true,
		},
		Twist: TwistConfig{
			Count:              4,
			Influences:         []float64{0.1, 0.33, 0.66, 1.0},
			Prefix:             "twist_",
			NameClip:           7,
			CandidateTolerance: 0.01,
		},
		Bind: BindConfig{
			MaxInfluences: 4,
			MinWeight:     0.01,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that the heuristic tables are consistent.
func (c *Config) Validate() error {
	p := c.Placement
	if p.HeightDivisor <= 0 {
		return rigerr.Configuration("height_divisor must be positive, got %v", p.HeightDivisor)
	}
	if len(p.SpineBones) == 0 {
		return rigerr.Configuration("spine_bones is empty")
	}
	if len(p.SpineLengths) != len(p.SpineBones) || len(p.SpineFallbackY) != len(p.SpineBones) {
		return rigerr.Configuration("spine tables need %d entries (lengths %d, fallback %d)",
			len(p.SpineBones), len(p.SpineLengths), len(p.SpineFallbackY))
	}
	if len(p.ArmBones) != 4 {
		return rigerr.Configuration("arm_bones needs 4 names, got %d", len(p.ArmBones))
	}
	if len(p.LegBones) != 4 {
		return rigerr.Configuration("leg_bones needs 4 names, got %d", len(p.LegBones))
	}
	if c.IK.MinChainCount < 1 || c.IK.MaxChainCount < c.IK.MinChainCount {
		return rigerr.Configuration("invalid chain count range [%d, %d]", c.IK.MinChainCount, c.IK.MaxChainCount)
	}
	if c.IK.DefaultChainCount < c.IK.MinChainCount || c.IK.DefaultChainCount > c.IK.MaxChainCount {
		return rigerr.Configuration("default_chain_count %d outside [%d, %d]",
			c.IK.DefaultChainCount, c.IK.MinChainCount, c.IK.MaxChainCount)
	}
	if c.Twist.Count < 1 {
		return rigerr.Configuration("twist count must be positive, got %d", c.Twist.Count)
	}
	if len(c.Twist.Influences) != c.Twist.Count {
		return rigerr.Configuration("twist influences need %d entries, got %d", c.Twist.Count, len(c.Twist.Influences))
	}
	for _, inf := range c.Twist.Influences {
		if inf < 0 || inf > 1 {
			return rigerr.Configuration("twist influence %v outside [0, 1]", inf)
		}
	}
	if c.Bind.MaxInfluences < 1 {
		return rigerr.Configuration("bind max_influences must be positive, got %d", c.Bind.MaxInfluences)
	}
	if c.Bind.MinWeight < 0 || c.Bind.MinWeight >= 1 {
		return rigerr.Configuration("bind min_weight %v outside [0, 1)", c.Bind.MinWeight)
	}
	return nil
}
