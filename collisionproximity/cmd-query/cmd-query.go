// package main queries a collision space from the command line
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/proximity/collisionproximity"
	"go.viam.com/proximity/distancefield"
	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/referenceframe"
)

const (
	flagModel    = "model"
	flagConfig   = "config"
	flagScene    = "scene"
	flagGroup    = "group"
	flagJoints   = "joints"
	flagLogFile  = "log-file"
	flagDebug    = "debug"
	flagSubtract = "subtract-radii"
	flagZ        = "z"
	flagOut      = "out"
)

func main() {
	app := &cli.App{
		Name:  "cmd-query",
		Usage: "check a robot state for collisions against a scene",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagModel, Usage: "robot model JSON file", Required: true},
			&cli.StringFlag{Name: flagConfig, Usage: "collision space config JSON file"},
			&cli.StringFlag{Name: flagScene, Usage: "scene JSON file of static and attached objects"},
			&cli.StringFlag{Name: flagGroup, Usage: "group of links to query"},
			&cli.StringFlag{Name: flagJoints, Usage: "joint values as name=value,name=value"},
			&cli.StringFlag{Name: flagLogFile, Usage: "also write logs to this file, rotated"},
			&cli.BoolFlag{Name: flagDebug, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "report the collisions of every body of the group",
				Action: checkAction,
			},
			{
				Name:  "gradients",
				Usage: "report the distance of every body of the group to what it may collide with",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagSubtract, Usage: "subtract sphere radii from distances", Value: true},
				},
				Action: gradientsAction,
			},
			{
				Name:  "slice",
				Usage: "render a horizontal slice of the distance field as a PNG heat map",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagZ, Usage: "height of the slice in meters"},
					&cli.StringFlag{Name: flagOut, Usage: "output PNG file", Value: "slice.png"},
				},
				Action: sliceAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the collision space config",
				Action: schemaAction,
			},
		},
	}
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// queryEnv is everything the query commands share.
type queryEnv struct {
	logger logging.Logger
	space  *collisionproximity.Space
	state  *referenceframe.KinematicState
}

func newQueryEnv(c *cli.Context) (*queryEnv, error) {
	logger := logging.NewLogger("cmd-query")
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	if filename := c.String(flagLogFile); filename != "" {
		logger.AddAppender(logging.NewWriterAppender(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    64,
			MaxBackups: 2,
			Compress:   true,
		}))
	}

	model, err := referenceframe.ParseModelJSONFile(c.String(flagModel), "")
	if err != nil {
		return nil, err
	}
	cfg := collisionproximity.NewDefaultConfig()
	if filename := c.String(flagConfig); filename != "" {
		if cfg, err = collisionproximity.ParseConfigJSONFile(filename); err != nil {
			return nil, err
		}
	}
	space, err := collisionproximity.NewSpace(model, cfg, logger)
	if err != nil {
		return nil, err
	}

	state := model.NewKinematicState()
	values, err := referenceframe.ParseJointValues(c.String(flagJoints))
	if err != nil {
		return nil, err
	}
	if err := state.SetJointValues(values); err != nil {
		return nil, err
	}

	if filename := c.String(flagScene); filename != "" {
		sc, err := readScene(filename)
		if err != nil {
			return nil, err
		}
		if err := sc.apply(c.Context, space, state); err != nil {
			return nil, err
		}
		logger.Infow("loaded scene", "static", space.StaticObjectNames(), "attached", space.AttachedObjectNames())
	}
	return &queryEnv{logger: logger, space: space, state: state}, nil
}

func (env *queryEnv) group(c *cli.Context) (string, error) {
	if g := c.String(flagGroup); g != "" {
		return g, nil
	}
	groups := env.space.Model().GroupNames()
	if len(groups) == 0 {
		return "", errors.New("the model defines no groups")
	}
	return groups[0], nil
}

func (env *queryEnv) close() {
	logProcessUsage(env.logger)
	//nolint:errcheck
	env.logger.Sync()
}

func checkAction(c *cli.Context) error {
	env, err := newQueryEnv(c)
	if err != nil {
		return err
	}
	defer env.close()
	group, err := env.group(c)
	if err != nil {
		return err
	}

	var res *collisionproximity.CollisionResult
	if err := env.space.WithGroupQueries(c.Context, group, env.state, func(sess *collisionproximity.Session) error {
		res, err = sess.GetStateCollisions()
		return err
	}); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("group %s, in collision: %t", group, res.InCollision))
	t.AppendHeader(table.Row{"Body", "Attached", "Collision", "Partners"})
	for _, rec := range append(res.Links, res.AttachedBodies...) {
		t.AppendRow(table.Row{rec.Name, rec.Attached, rec.Type, rec.Partners})
	}
	t.Render()
	return nil
}

func gradientsAction(c *cli.Context) error {
	env, err := newQueryEnv(c)
	if err != nil {
		return err
	}
	defer env.close()
	group, err := env.group(c)
	if err != nil {
		return err
	}

	var res *collisionproximity.GradientResult
	if err := env.space.WithGroupQueries(c.Context, group, env.state, func(sess *collisionproximity.Session) error {
		res, err = sess.GetStateGradients(c.Bool(flagSubtract))
		return err
	}); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("group %s, closest distance %.4f", group, res.ClosestDistance))
	t.AppendHeader(table.Row{"Body", "Spheres", "Closest", "Mean", "Median", "Partner"})
	for _, body := range res.Bodies() {
		distances := make(stats.Float64Data, 0, len(body.Spheres))
		partner := ""
		for _, s := range body.Spheres {
			distances = append(distances, s.Distance)
			if s.Distance == body.ClosestDistance {
				partner = s.Partner
			}
		}
		mean, median := body.ClosestDistance, body.ClosestDistance
		if len(distances) > 0 {
			//nolint:errcheck
			mean, _ = stats.Mean(distances)
			//nolint:errcheck
			median, _ = stats.Percentile(distances, 50)
		}
		t.AppendRow(table.Row{
			body.Name, len(body.Spheres),
			fmt.Sprintf("%.4f", body.ClosestDistance),
			fmt.Sprintf("%.4f", mean),
			fmt.Sprintf("%.4f", median),
			partner,
		})
	}
	t.Render()
	return nil
}

// fieldSlice is a horizontal layer of a distance field, seen as a plottable grid.
type fieldSlice struct {
	field *distancefield.PropagationDistanceField
	k     int
}

func (s fieldSlice) Dims() (c, r int) {
	dims := s.field.Dims()
	return dims.I, dims.J
}

func (s fieldSlice) Z(c, r int) float64 {
	return s.field.DistanceAt(distancefield.VoxelCoords{I: c, J: r, K: s.k})
}

func (s fieldSlice) X(c int) float64 {
	return s.field.GridToWorld(distancefield.VoxelCoords{I: c}).X
}

func (s fieldSlice) Y(r int) float64 {
	return s.field.GridToWorld(distancefield.VoxelCoords{J: r}).Y
}

func sliceAction(c *cli.Context) error {
	env, err := newQueryEnv(c)
	if err != nil {
		return err
	}
	defer env.close()

	render := func() error {
		field := env.space.DistanceField()
		origin := field.Config().Origin
		coords, ok := field.WorldToGrid(r3.Vector{X: origin.X, Y: origin.Y, Z: c.Float64(flagZ)})
		if !ok {
			return errors.Errorf("height %.3f is outside the distance field", c.Float64(flagZ))
		}
		p := plot.New()
		p.Title.Text = fmt.Sprintf("distance field at z = %.3f", field.GridToWorld(coords).Z)
		p.X.Label.Text = "x (m)"
		p.Y.Label.Text = "y (m)"
		heatMap := plotter.NewHeatMap(fieldSlice{field: field, k: coords.K}, palette.Heat(16, 1))
		heatMap.Min, heatMap.Max = 0, field.MaxDistance()
		heatMap.NaN = color.Black
		p.Add(heatMap)
		if err := p.Save(8*vg.Inch, 8*vg.Inch, c.String(flagOut)); err != nil {
			return err
		}
		env.logger.Infow("wrote distance field slice", "file", c.String(flagOut), "layer", coords.K)
		return nil
	}

	// with a group the slice includes the robot bodies outside it
	if group := c.String(flagGroup); group != "" {
		return env.space.WithGroupQueries(c.Context, group, env.state, func(*collisionproximity.Session) error {
			return render()
		})
	}
	return render()
}

func schemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(collisionproximity.ConfigSchema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

// logProcessUsage logs the memory and CPU time of this process where /proc is available.
func logProcessUsage(logger logging.Logger) {
	proc, err := procfs.Self()
	if err != nil {
		return
	}
	stat, err := proc.Stat()
	if err != nil {
		return
	}
	logger.Debugw("process usage",
		"rss_mb", float64(stat.ResidentMemory())/1_000_000.0,
		"cpu_secs", stat.CPUTime(),
	)
}
