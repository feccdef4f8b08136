package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perch-lang/perch/builtins"
	"github.com/perch-lang/perch/object"
	"github.com/perch-lang/perch/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a Perch program",
	Long: `Run executes a program given as either a syntax-tree JSON document
or compiled bytecode (a .pbc file produced by "perch build").`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, path, err := getInput(cmd, args)
		if err != nil {
			return err
		}
		code, err := loadCode(data, path)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := vm.Run(cmd.Context(), code,
			vm.WithGlobals(builtins.Builtins()))
		if err != nil {
			return err
		}
		dt := time.Since(start)
		logger.Debug().Dur("elapsed", dt).Msg("run complete")

		if result != object.Nil {
			fmt.Fprintln(cmd.OutOrStdout(), result.Inspect())
		}
		if timing, _ := cmd.Flags().GetBool("timing"); timing {
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", dt)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("stdin", false, "Read input from stdin")
	runCmd.Flags().Bool("timing", false, "Show execution time")
	rootCmd.AddCommand(runCmd)
}
