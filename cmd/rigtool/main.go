// rigtool runs the rig operations against a scene document.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/ops"
	"github.com/Faultbox/midgard-rig/internal/scene"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the persistent flags and what PersistentPreRunE loads.
type app struct {
	out io.Writer

	scenePath    string
	configPath   string
	outPath      string
	armatureName string
	debug        bool
	logFile      string

	cfg    *config.Config
	scene  *scene.Scene
	runner *ops.Runner
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:   "rigtool",
		Short: "Humanoid rig construction and IK/FK snapping",
		Long: `rigtool edits the armatures of a YAML scene document.

Each command loads --scene, runs one operation and writes the result to --out
(or back to --scene). Bones are addressed by name.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.scenePath, "scene", "scene.yaml", "scene document to edit")
	pf.StringVar(&a.configPath, "config", "", "config file (default ./rig.yaml or the user config dir)")
	pf.StringVar(&a.outPath, "out", "", "where to write the scene (default: --scene)")
	pf.StringVar(&a.armatureName, "armature", "", "armature to edit (default: the first one)")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")
	pf.StringVar(&a.logFile, "log-file", "", "also log to this file, rotated")

	root.AddCommand(
		a.placeCmd(),
		a.bindCmd(),
		a.ikCmd(),
		a.snapCmd(),
		a.twistUpperCmd(),
		a.twistLowerCmd(),
		a.candidatesCmd(),
		a.selectNearCmd(),
		a.inspectCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(config.Overrides{
		Path:    a.configPath,
		Debug:   a.debug,
		LogFile: a.logFile,
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg = cfg
	a.runner = ops.NewRunner(cfg)

	s, err := scene.Load(a.scenePath)
	if err != nil {
		return err
	}
	a.scene = s
	return nil
}

// armature returns the armature selected by --armature.
func (a *app) armature() (*armature.Armature, error) {
	if a.armatureName != "" {
		if arm := a.scene.Armature(a.armatureName); arm != nil {
			return arm, nil
		}
		return nil, fmt.Errorf("no armature %q in %s", a.armatureName, a.scenePath)
	}
	if len(a.scene.Armatures) == 0 {
		return nil, fmt.Errorf("no armature in %s", a.scenePath)
	}
	return a.scene.Armatures[0], nil
}

// bone looks a bone up by name. A missing name yields nil so the operation
// reports its own validation message.
func bone(arm *armature.Armature, name string) *armature.Bone {
	if arm == nil || name == "" {
		return nil
	}
	b := arm.Bone(name)
	if b == nil {
		logger.Warn("bone not found", zap.String("armature", arm.Name), zap.String("bone", name))
	}
	return b
}

// finish prints the report and saves the scene when the operation finished.
func (a *app) finish(rep ops.Report) error {
	fmt.Fprintln(a.out, rep.Message)
	if !rep.OK() {
		return rep.Err
	}
	return a.save()
}

func (a *app) save() error {
	path := a.outPath
	if path == "" {
		path = a.scenePath
	}
	return a.scene.Save(path)
}
