package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "perch",
	Short: "Compile and run Perch programs",
	Long: `Perch compiles syntax trees produced by a frontend into bytecode
and executes them on a stack-based virtual machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		processGlobalFlags()
		logger = newLogger()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("perch %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.Bool("no-color", false, "Disable colored output")
	pflags.Bool("verbose", false, "Enable verbose logging")
	viper.BindPFlag("no-color", pflags.Lookup("no-color"))
	viper.BindPFlag("verbose", pflags.Lookup("verbose"))
	viper.BindEnv("no-color", "NO_COLOR")
	viper.SetEnvPrefix("PERCH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
}

// newLogger returns a logger tagged with a fresh run id. Logging is off
// unless --verbose is set.
func newLogger() zerolog.Logger {
	level := zerolog.Disabled
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	runID := uuid.Must(uuid.NewV4()).String()
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("run_id", runID).
		Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
