package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/dis"
)

var disCmd = &cobra.Command{
	Use:   "dis [file]",
	Short: "Disassemble compiled bytecode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, path, err := getInput(cmd, args)
		if err != nil {
			return err
		}
		code, err := loadCode(data, path)
		if err != nil {
			return err
		}

		// If a function name was provided, disassemble its code only
		target := code
		if funcName, _ := cmd.Flags().GetString("func"); funcName != "" {
			fn := findFunction(code, funcName)
			if fn == nil {
				return fmt.Errorf("function %q not found", funcName)
			}
			target = fn.Code()
		}

		instructions, err := dis.Disassemble(target)
		if err != nil {
			return err
		}
		dis.Print(instructions, cmd.OutOrStdout())
		if target.ExceptionHandlerCount() > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
			dis.PrintHandlers(target, cmd.OutOrStdout())
		}
		return nil
	},
}

// findFunction searches a code block and all nested blocks for a named
// function constant.
func findFunction(code *bytecode.Code, name string) *bytecode.Function {
	for _, block := range code.Flatten() {
		for i := 0; i < block.ConstantCount(); i++ {
			fn, ok := block.ConstantAt(i).(*bytecode.Function)
			if !ok {
				continue
			}
			if fn.Name() == name {
				return fn
			}
		}
	}
	return nil
}

func init() {
	disCmd.Flags().Bool("stdin", false, "Read input from stdin")
	disCmd.Flags().String("func", "", "Disassemble only the named function")
	rootCmd.AddCommand(disCmd)
}
