package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perch-lang/perch/bytecode"
)

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Compile a Perch program to bytecode",
	Long: `Build compiles a syntax-tree JSON document and writes the compiled
bytecode to a .pbc file, which "perch run" and "perch dis" accept directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, path, err := getInput(cmd, args)
		if err != nil {
			return err
		}
		code, err := compileTree(data, path)
		if err != nil {
			return err
		}
		payload, err := bytecode.Marshal(code)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			if path == "<stdin>" {
				return fmt.Errorf("--output is required when reading from stdin")
			}
			output = strings.TrimSuffix(path, filepath.Ext(path)) + ".pbc"
		}
		if err := os.WriteFile(output, payload, 0o644); err != nil {
			return err
		}
		logger.Debug().Str("output", output).Int("bytes", len(payload)).Msg("wrote bytecode")
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

func init() {
	buildCmd.Flags().Bool("stdin", false, "Read input from stdin")
	buildCmd.Flags().StringP("output", "o", "", "Output path for the compiled bytecode")
	rootCmd.AddCommand(buildCmd)
}
