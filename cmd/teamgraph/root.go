package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/teamgraph/config"
)

var (
	configPath  string
	debugMode   bool
	teamName    string
	outputFmt   string
	storeDriver string
	metricsAddr string
	traceRun    bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "teamgraph",
	Short: "Supervisor-routed agent teams",
	Long: `teamgraph runs small teams of agents coordinated by a supervisor.

Each team is a graph: the supervisor reads the conversation and routes to a
worker, finishes, or waits for more input. Workers report back and the
supervisor decides again.

Teams:
  research  Answers questions about GitHub repositories
  product   Gathers repository context, plans changes and tracks tasks
  dev       Researches, writes, saves and runs code in a workspace

Examples:
  teamgraph run "What is dshills/langgraph-go about?" --team research
  teamgraph chat --team dev
  teamgraph teams`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", failColor.Sprint("error:"), err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ./teamgraph.yaml or $XDG_CONFIG_HOME/teamgraph/teamgraph.yaml)")
	pf.BoolVar(&debugMode, "debug", false, "Development logging at debug level")
	pf.StringVarP(&teamName, "team", "t", "product", "Team to run (research, product, dev)")
	pf.StringVarP(&outputFmt, "output", "o", "", "Final state format: text, json or yaml")
	pf.StringVar(&storeDriver, "store", "", "State store: memory, sqlite, mysql or redis")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.BoolVar(&traceRun, "trace", false, "Record OpenTelemetry spans and print a summary")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(teamsCmd)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if outputFmt != "" {
		cfg.Output.Format = outputFmt
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
