package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sim "github.com/michelgokan/perfsim/sim"
)

var (
	scenarioPath string // Path to the YAML scenario document
	logLevel     string // Log verbosity level
	seed         int64  // Seed override (-1 keeps the scenario's seed)
	horizon      int64  // Horizon override in ticks (-1 keeps the scenario's horizon)
	policyName   string // Placement policy override
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "perfsim",
	Short: "Discrete-event performance simulator for microservice chains",
}

// runCmd loads a scenario from YAML and executes one simulation run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("No scenario provided. Pass --scenario or set PERFSIM_SCENARIO.")
		}

		scenario, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Unable to load scenario %q: %v", scenarioPath, err)
		}
		applyOverrides(scenario)

		startTime := time.Now()
		simulation, err := sim.New(scenario)
		if err != nil {
			logrus.Fatalf("Scenario rejected: %v", err)
		}
		result, err := simulation.Run()
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		result.Print()
		logrus.Infof("Simulation complete in %v (wall clock).", time.Since(startTime))
	},
}

// applyOverrides folds CLI overrides into the loaded scenario.
func applyOverrides(sc *sim.Scenario) {
	if seed >= 0 {
		sc.Seed = seed
	}
	if horizon >= 0 {
		sc.Horizon = horizon
	}
	if policyName != "" {
		p, err := newPolicy(policyName)
		if err != nil {
			logrus.Fatalf("Invalid policy override: %v", err)
		}
		sc.Policy = p
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags, environment defaults, and subcommands
func init() {
	viper.SetEnvPrefix("perfsim")
	viper.AutomaticEnv()
	viper.SetDefault("SCENARIO", "")
	viper.SetDefault("LOG", "info")

	runCmd.Flags().StringVar(&scenarioPath, "scenario", viper.GetString("SCENARIO"), "Path to the YAML scenario document")
	runCmd.Flags().StringVar(&logLevel, "log", viper.GetString("LOG"), "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", -1, "Seed override for the run (-1 keeps the scenario's seed)")
	runCmd.Flags().Int64Var(&horizon, "horizon", -1, "Simulation horizon override in ticks (-1 keeps the scenario's horizon)")
	runCmd.Flags().StringVar(&policyName, "policy", "", "Placement policy override (binpack, roundrobin, latency)")

	rootCmd.AddCommand(runCmd)
}
