package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/perch-lang/perch/builtins"
	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/compiler"
	"github.com/perch-lang/perch/ir"
	"github.com/perch-lang/perch/syntax"
)

var red = color.New(color.FgRed).SprintFunc()

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = friendlyMessage(msg)
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

// friendlyMessage prefers the rich rendering (location, snippet, stack
// trace) that the structured error types carry.
func friendlyMessage(err error) string {
	if friendly, ok := err.(interface{ FriendlyErrorMessage() string }); ok {
		return friendly.FriendlyErrorMessage()
	}
	return err.Error()
}

// getInput determines the program input. There are two possibilities:
//  1. --stdin (read from stdin)
//  2. path as args[0]
func getInput(cmd *cobra.Command, args []string) ([]byte, string, error) {
	var stdinFlagSet bool
	if f := cmd.Flags().Lookup("stdin"); f != nil && f.Changed {
		stdinFlagSet = true
	}
	pathSupplied := len(args) > 0
	if pathSupplied && stdinFlagSet {
		return nil, "", errors.New("multiple input sources specified")
	}
	if stdinFlagSet {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", err
		}
		return data, "<stdin>", nil
	}
	if pathSupplied {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, "", err
		}
		return data, args[0], nil
	}
	return nil, "", errors.New("no input provided")
}

// isCompiled reports whether the input looks like persisted bytecode rather
// than a syntax-tree JSON document.
func isCompiled(data []byte, path string) bool {
	if filepath.Ext(path) == ".pbc" {
		return true
	}
	// Syntax trees are JSON objects; anything else is assumed compiled.
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return false
		default:
			return true
		}
	}
	return true
}

// loadCode turns program input into an executable code block, compiling
// syntax-tree JSON and unmarshaling already-compiled bytecode as-is.
func loadCode(data []byte, path string) (*bytecode.Code, error) {
	if isCompiled(data, path) {
		logger.Debug().Str("path", path).Msg("loading compiled bytecode")
		return bytecode.Unmarshal(data)
	}
	return compileTree(data, path)
}

// compileTree lowers a syntax-tree JSON document through the IR builder and
// the compiler, with the default builtins visible as globals.
func compileTree(data []byte, path string) (*bytecode.Code, error) {
	node, err := syntax.Decode(data)
	if err != nil {
		return nil, err
	}
	tree, err := ir.Build(node)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", path).Msg("compiling")
	return compiler.Compile(tree,
		compiler.WithFilename(path),
		compiler.WithGlobalNames(builtins.GlobalNames()))
}
