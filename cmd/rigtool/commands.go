package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/placement"
	"github.com/Faultbox/midgard-rig/internal/snap"
	"github.com/Faultbox/midgard-rig/internal/twist"
)

func (a *app) mesh(name string) (*armature.Mesh, error) {
	if name != "" {
		if m := a.scene.Mesh(name); m != nil {
			return m, nil
		}
		return nil, fmt.Errorf("no mesh %q in %s", name, a.scenePath)
	}
	if len(a.scene.Meshes) == 0 {
		return nil, nil
	}
	return a.scene.Meshes[0], nil
}

func (a *app) placeCmd() *cobra.Command {
	var meshName string
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place the standard skeleton inside a reference mesh",
		Long: `Builds or updates spine, left arm and left leg bones so they sit inside
the reference mesh. The mesh is expected to stand on z=0 facing -Y.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mesh(meshName)
			if err != nil {
				return err
			}
			arm, err := a.armature()
			if err != nil && a.armatureName != "" {
				return err
			}
			// An empty scene is reported by the operation.
			return a.finish(a.runner.GenerateRigPlacement(m, arm))
		},
	}
	cmd.Flags().StringVar(&meshName, "mesh", "", "reference mesh (default: the first one)")
	return cmd
}

func (a *app) bindCmd() *cobra.Command {
	var meshName string
	cmd := &cobra.Command{
		Use:   "bind",
		Short: "Parent a mesh to the armature with envelope weights",
		Long: `Replaces the mesh's vertex groups with one group per deform bone, weighted
by distance inside each bone's envelope. Vertices outside every envelope go
to the nearest deform bone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mesh(meshName)
			if err != nil {
				return err
			}
			arm, err := a.armature()
			if err != nil {
				return err
			}
			return a.finish(a.runner.BindMesh(m, arm))
		},
	}
	cmd.Flags().StringVar(&meshName, "mesh", "", "mesh to bind (default: the first one)")
	return cmd
}

func (a *app) ikCmd() *cobra.Command {
	var chain int
	cmd := &cobra.Command{
		Use:   "ik <bone>",
		Short: "Create or update the IK target, pole and constraint of a bone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			return a.finish(a.runner.GenerateIKChain(arm, bone(arm, args[0]), chain))
		},
	}
	cmd.Flags().IntVar(&chain, "chain", 0, "chain length (default from config)")
	return cmd
}

func (a *app) snapCmd() *cobra.Command {
	var frame int
	cmd := &cobra.Command{
		Use:   "snap <bone>",
		Short: "Key the FK pose of an IK chain at a frame",
		Long: `Bakes the evaluated pose of the chain containing <bone> into rotation and
location keys, keys the IK influence and, for partially blended chains, moves
the IK controls onto the pose so switching influence does not pop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("frame") {
				frame = a.scene.Frame
			}
			a.scene.Frame = frame
			return a.finish(a.runner.SnapIKFK(arm, bone(arm, args[0]), frame))
		},
	}
	cmd.Flags().IntVar(&frame, "frame", 0, "frame to key (default: the scene frame)")
	return cmd
}

func (a *app) twistUpperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "twist-upper <bone>",
		Short: "Split an upper limb segment into twist bones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			return a.finish(a.runner.GenerateTwistUpper(arm, bone(arm, args[0])))
		},
	}
}

func (a *app) twistLowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "twist-lower <bone> <reference>",
		Short: "Split a lower limb segment into twist bones driven by a reference bone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			return a.finish(a.runner.GenerateTwistLower(arm, bone(arm, args[0]), bone(arm, args[1])))
		},
	}
}

func (a *app) candidatesCmd() *cobra.Command {
	var tol float64
	cmd := &cobra.Command{
		Use:   "candidates <bone>",
		Short: "List reference bones for twist-lower",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			b := arm.Bone(args[0])
			if b == nil {
				return fmt.Errorf("no bone %q in %s", args[0], arm.Name)
			}
			if !cmd.Flags().Changed("tolerance") {
				tol = a.cfg.Twist.CandidateTolerance
			}
			for _, c := range twist.ReferenceCandidates(arm, b, tol) {
				fmt.Fprintln(a.out, c.Name)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tol, "tolerance", 0, "per-axis distance from the bone's tail")
	return cmd
}

func (a *app) selectNearCmd() *cobra.Command {
	var (
		meshName  string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "select-near <bone>...",
		Short: "Print the mesh vertices close to the given bones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arm, err := a.armature()
			if err != nil {
				return err
			}
			m, err := a.mesh(meshName)
			if err != nil {
				return err
			}
			var bones []*armature.Bone
			for _, name := range args {
				if b := bone(arm, name); b != nil {
					bones = append(bones, b)
				}
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Placement.NearBoneThreshold
			}
			idx, err := placement.SelectNearBones(m, arm, bones, threshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d vertices\n", len(idx))
			for _, i := range idx {
				fmt.Fprintln(a.out, i)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&meshName, "mesh", "", "mesh to select from (default: the first one)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "distance to the bone segment")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the bones, constraints and IK chains of the scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := newStyles(a.out)
			fmt.Fprintln(a.out, st.header.Render(fmt.Sprintf("frame %d", a.scene.Frame)))
			for _, m := range a.scene.Meshes {
				fmt.Fprintf(a.out, "mesh %s: %d vertices\n", m.Name, len(m.Vertices))
			}
			for _, arm := range a.scene.Armatures {
				a.printArmature(st, arm)
			}
			return nil
		},
	}
}

func (a *app) printArmature(st styles, arm *armature.Armature) {
	fmt.Fprintln(a.out, st.header.Render(fmt.Sprintf("armature %s: %d bones, %d roles, %d curves",
		arm.Name, len(arm.Bones()), arm.Registry.Len(), len(arm.Action.Curves()))))
	var walk func(b *armature.Bone, depth int)
	walk = func(b *armature.Bone, depth int) {
		fmt.Fprintf(a.out, "%s%s  len=%.4f roll=%.4f", strings.Repeat("  ", depth+1), st.bone.Render(b.Name), b.Length(), b.Roll)
		if !b.Deform {
			fmt.Fprint(a.out, " "+st.flag.Render("no-deform"))
		}
		fmt.Fprintln(a.out)
		for _, c := range b.Constraints {
			line := fmt.Sprintf("- %s %s -> %s (%.2f)", c.Kind, c.Name, c.Subtarget, c.Influence)
			fmt.Fprintln(a.out, strings.Repeat("  ", depth+2)+st.constraint.Render(line))
		}
		for _, child := range arm.Children(b) {
			walk(child, depth+1)
		}
	}
	for _, b := range arm.Bones() {
		if b.Parent == nil {
			walk(b, 0)
		}
	}
	for _, ch := range snap.DiscoverChains(arm) {
		fmt.Fprintln(a.out, "  "+st.chain.Render("chain "+strings.Join(ch.Names(), " ")))
	}
}
