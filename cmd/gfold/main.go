package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/rmarchand/gfold"
)

const deg2rad = math.Pi / 180

func main() {
	cfgPath := flag.String("config", "gfold.toml", "path to the descent configuration file")
	flag.Parse()

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))

	viper.SetConfigFile(*cfgPath)
	if err := viper.ReadInConfig(); err != nil {
		logger.Log("level", "critical", "subsys", "config", "err", err)
		os.Exit(1)
	}

	engines := viper.GetFloat64("vehicle.engines")
	perEngine := viper.GetFloat64("vehicle.engine_thrust")
	params := gfold.RocketParams{
		Gravity:    vec3("planet.gravity"),
		Omega:      vec3("planet.omega"),
		DryMass:    viper.GetFloat64("vehicle.dry_mass"),
		WetMass:    viper.GetFloat64("vehicle.wet_mass"),
		Isp:        viper.GetFloat64("vehicle.isp"),
		CantAngle:  viper.GetFloat64("vehicle.cant_deg") * deg2rad,
		MinThrust:  viper.GetFloat64("vehicle.throttle_min") * engines * perEngine,
		MaxThrust:  viper.GetFloat64("vehicle.throttle_max") * engines * perEngine,
		GlideSlope: viper.GetFloat64("descent.glide_slope_deg") * deg2rad,
		MaxPoint:   viper.GetFloat64("descent.max_point_deg") * deg2rad,
		MaxSpeed:   viper.GetFloat64("descent.max_speed"),
		Pos0:       vec3("descent.pos0"),
		Vel0:       vec3("descent.vel0"),
		Step:       viper.GetFloat64("descent.step"),
	}
	rocket, err := gfold.NewRocket(params)
	if err != nil {
		logger.Log("level", "critical", "subsys", "config", "err", err)
		os.Exit(1)
	}

	lo, hi := rocket.TimeOfFlightBracket()
	logger.Log("level", "info", "subsys", "guidance", "bracket_lo(s)", lo, "bracket_hi(s)", hi)

	opt := gfold.NewOptimizer(rocket)
	tol := viper.GetFloat64("search.tolerance")
	if tol == 0 {
		tol = 1e-3
	}
	tof, plan, err := gfold.SearchTimeOfFlight(opt, lo, hi, tol, logger)
	if err != nil {
		logger.Log("level", "critical", "subsys", "guidance", "err", err)
		os.Exit(1)
	}
	logger.Log("level", "notice", "subsys", "guidance", "tof(s)", tof, "fuel(kg)", plan.Mass[0]-plan.Mass[len(plan.Mass)-1])

	simStep := viper.GetFloat64("sim.step")
	if simStep == 0 {
		simStep = rocket.Step / 10
	}
	replay := gfold.Simulate(rocket, plan.State(0), gfold.NewZOHLaw(plan), tof, simStep)
	final := replay.State(replay.Nodes() - 1)
	logger.Log("level", "notice", "subsys", "sim",
		"miss(m)", fmt.Sprintf("%.3f", normOf(final[0:3])),
		"residual_speed(m/s)", fmt.Sprintf("%.3f", normOf(final[3:6])),
		"final_mass(kg)", fmt.Sprintf("%.1f", replay.Mass[replay.Nodes()-1]))

	outDir := viper.GetString("general.output_path")
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logger.Log("level", "critical", "subsys", "export", "err", err)
		os.Exit(1)
	}
	for name, traj := range map[string]*gfold.Trajectory{"guidance.csv": plan, "simulation.csv": replay} {
		if err := writeCSV(filepath.Join(outDir, name), traj); err != nil {
			logger.Log("level", "critical", "subsys", "export", "file", name, "err", err)
			os.Exit(1)
		}
		logger.Log("level", "info", "subsys", "export", "file", filepath.Join(outDir, name))
	}
}

func writeCSV(path string, traj *gfold.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return traj.WriteCSV(f)
}

// vec3 reads a three-component float array from the configuration.
func vec3(key string) []float64 {
	raw, ok := viper.Get(key).([]interface{})
	if !ok || len(raw) != 3 {
		return nil // NewRocket rejects it with a parameter error
	}
	v := make([]float64, 3)
	for i, item := range raw {
		v[i] = cast.ToFloat64(item)
	}
	return v
}

func normOf(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
