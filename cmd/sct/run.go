package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/concheck/sct/conc"
	"github.com/concheck/sct/dpor"
)

var (
	debugFlag       bool
	keepGoing       bool
	preemptionBound uint32
	fairBound       uint32
	memoryModelFlag string
	maxExecutions   int
)

var runCmd = &cobra.Command{
	Use:   "run SCENARIOFILE",
	Short: "Explore a registered scenario to bounded exhaustion",
	Args:  cobra.ExactArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().BoolVar(&debugFlag, "debug", false, "Log every exploration step at trace level")
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Keep exploring after the first failing execution instead of stopping")
	runCmd.Flags().Uint32Var(&preemptionBound, "preemption-bound", 0, "Override the scenario's preemption bound (0 = use scenario file)")
	runCmd.Flags().Uint32Var(&fairBound, "fair-bound", 0, "Override the scenario's fair bound (0 = use scenario file)")
	runCmd.Flags().StringVar(&memoryModelFlag, "memory-model", "", "Override the scenario's memory model: sc, tso, pso")
	runCmd.Flags().IntVar(&maxExecutions, "max-executions", 0, "Override the scenario's exploration budget (0 = use scenario file)")
}

func runCommand(cmd *cobra.Command, args []string) {
	if debugFlag {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	filename := args[0]
	spec, err := dpor.LoadScenarioFromFile(filename)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't load scenario file")
	}

	// CLI flags override the scenario file, mirroring how the teacher's
	// run command lets flags override spec settings.
	if preemptionBound > 0 {
		spec.Scenario.PreemptionBound = preemptionBound
	}
	if fairBound > 0 {
		spec.Scenario.FairBound = fairBound
	}
	if memoryModelFlag != "" {
		spec.Scenario.MemoryModel = memoryModelFlag
	}
	if maxExecutions > 0 {
		spec.Scenario.MaxExecutions = maxExecutions
	}

	explorer, err := dpor.NewExplorer(spec)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't build explorer for scenario")
	}

	fmt.Fprintln(os.Stderr, color.Cyan.Sprint("Exploring..."))

	var executions []dpor.Execution
	if keepGoing {
		executions = explorer.ExploreAll()
	} else {
		executions = explorer.Explore(func(e dpor.Execution) bool {
			return e.Result.Failure == conc.FailureNone
		})
	}

	summary := dpor.Summarize(executions, explorer.Shapes)
	fmt.Fprint(os.Stderr, dpor.FormatSummary(summary))

	matches := spec.MatchesExpectedResult(executions)
	fmt.Fprintln(os.Stderr)
	if matches {
		if spec.Scenario.ExpectedError != "" {
			fmt.Fprintln(os.Stderr, color.Green.Sprintf("✓ exploration found the expected error: %s", spec.Scenario.ExpectedError))
		} else {
			fmt.Fprintln(os.Stderr, color.Green.Sprint("✓ exploration completed successfully — no failing executions"))
		}
		return
	}

	if spec.Scenario.ExpectedError != "" {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("✗ expected error '%s' but it never occurred", spec.Scenario.ExpectedError))
	} else {
		fmt.Fprintln(os.Stderr, color.Red.Sprint("✗ exploration found a failing execution"))
	}
	os.Exit(1)
}
