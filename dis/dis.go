// Package dis supports analysis of Perch bytecode by disassembling it into
// an instruction listing.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/perch-lang/perch/bytecode"
	"github.com/perch-lang/perch/internal/table"
	"github.com/perch-lang/perch/op"
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []op.Code
	Annotation string
	Constant   interface{}
}

// Disassemble returns a parsed representation of the given bytecode.
func Disassemble(code *bytecode.Code) ([]Instruction, error) {
	var instructions []Instruction
	count := code.InstructionCount()
	for offset := 0; offset < count; {
		opcode := code.InstructionAt(offset)
		info := op.GetInfo(opcode)
		if info.Name == "" {
			return nil, fmt.Errorf("unknown opcode %d at offset %d", opcode, offset)
		}
		if offset+info.OperandCount >= count {
			return nil, fmt.Errorf("truncated instruction at offset %d", offset)
		}
		operands := make([]op.Code, info.OperandCount)
		for i := 0; i < info.OperandCount; i++ {
			operands[i] = code.InstructionAt(offset + 1 + i)
		}
		var err error
		var constant interface{}
		var annotation string
		switch opcode {
		case op.LoadFast, op.StoreFast:
			annotation, err = getLocalVariableName(code, int(operands[0]))
			if err != nil {
				return nil, err
			}
		case op.LoadGlobal, op.StoreGlobal, op.LoadAttr, op.StoreAttr:
			annotation, err = getName(code, int(operands[0]))
			if err != nil {
				return nil, err
			}
		case op.BinaryOp:
			annotation = op.BinaryOpType(operands[0]).String()
		case op.CompareOp:
			annotation = op.CompareOpType(operands[0]).String()
		case op.LoadConst, op.LoadClosure:
			constant, err = getConstantValue(code, int(operands[0]))
			if err != nil {
				return nil, err
			}
			annotation = fmt.Sprintf("%v", constant)
		}
		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     opcode,
			Operands:   operands,
			Annotation: annotation,
			Constant:   constant,
		})
		offset += 1 + info.OperandCount
	}
	return instructions, nil
}

// Print writes a table representation of the given instructions.
func Print(instructions []Instruction, writer io.Writer) {
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	var lines [][]string
	for _, instr := range instructions {
		var values []string
		values = append(values, fmt.Sprintf("%d", instr.Offset))
		values = append(values, bold(instr.Name))
		values = append(values, formatOperands(instr.Operands))
		if instr.Constant != nil {
			switch c := instr.Constant.(type) {
			case int64:
				values = append(values, yellow(fmt.Sprintf("%d", c)))
			case float64:
				values = append(values, yellow(fmt.Sprintf("%f", c)))
			case string:
				if len(c) > 80 {
					c = c[:77] + "..."
				}
				values = append(values, green(fmt.Sprintf("%q", c)))
			case *bytecode.Function:
				name := c.Name()
				if name == "" {
					name = "<anonymous>"
				}
				values = append(values, magenta(fmt.Sprintf("func:%s", name)))
			default:
				values = append(values, bold(fmt.Sprintf("%v", c)))
			}
		} else if instr.Annotation != "" {
			values = append(values, cyan(instr.Annotation))
		} else {
			values = append(values, "")
		}
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

// PrintHandlers writes the exception table, if any, one entry per row.
func PrintHandlers(code *bytecode.Code, writer io.Writer) {
	count := code.ExceptionHandlerCount()
	if count == 0 {
		return
	}
	var lines [][]string
	for i := 0; i < count; i++ {
		h := code.ExceptionHandlerAt(i)
		catchStart := "-"
		if h.HasCatch() {
			catchStart = fmt.Sprintf("%d", h.CatchStart)
		}
		finallyStart := "-"
		if h.HasFinally() {
			finallyStart = fmt.Sprintf("%d", h.FinallyStart)
		}
		lines = append(lines, []string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d-%d", h.TryStart, h.TryEnd),
			catchStart,
			finallyStart,
		})
	}
	table.NewTable(writer).
		WithHeader([]string{"ENTRY", "RANGE", "CATCH", "FINALLY"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignRight,
		}).
		WithRows(lines).
		Render()
}

func formatOperands(operands []op.Code) string {
	var sb strings.Builder
	for i, operand := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", operand))
	}
	return sb.String()
}

func getLocalVariableName(code *bytecode.Code, index int) (string, error) {
	if code.LocalCount() <= index {
		return "", fmt.Errorf("local variable index out of range: %d", index)
	}
	if name := code.LocalNameAt(index); name != "" {
		return name, nil
	}
	return fmt.Sprintf("local_%d", index), nil
}

func getConstantValue(code *bytecode.Code, index int) (any, error) {
	if code.ConstantCount() <= index {
		return "", fmt.Errorf("constant index out of range: %d", index)
	}
	return code.ConstantAt(index), nil
}

func getName(code *bytecode.Code, index int) (string, error) {
	if code.NameCount() <= index {
		return "", fmt.Errorf("name index out of range: %d", index)
	}
	return code.NameAt(index), nil
}
