package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/perch-lang/perch/op"
)

// FormatVersion is the version number written into serialized bytecode.
// Readers reject payloads from a different version.
const FormatVersion = 2

// Constant kinds in the serialized form.
const (
	constNil    = "nil"
	constBool   = "bool"
	constInt    = "int"
	constFloat  = "float"
	constString = "string"
	constFunc   = "func"
)

type envelope struct {
	Version int         `cbor:"v"`
	Root    codePayload `cbor:"root"`
}

type codePayload struct {
	ID           string           `cbor:"id"`
	Name         string           `cbor:"name,omitempty"`
	IsNamed      bool             `cbor:"named,omitempty"`
	Instructions []uint16         `cbor:"ins"`
	Constants    []constPayload   `cbor:"consts,omitempty"`
	Names        []string         `cbor:"names,omitempty"`
	Source       string           `cbor:"src,omitempty"`
	Filename     string           `cbor:"file,omitempty"`
	Locations    []locPayload     `cbor:"locs,omitempty"`
	MaxCallArgs  int              `cbor:"maxargs,omitempty"`
	LocalCount   int              `cbor:"locals,omitempty"`
	LocalNames   []string         `cbor:"localnames,omitempty"`
	Handlers     []handlerPayload `cbor:"handlers,omitempty"`
	Children     []codePayload    `cbor:"children,omitempty"`
}

type constPayload struct {
	Kind  string       `cbor:"k"`
	Bool  bool         `cbor:"b,omitempty"`
	Int   int64        `cbor:"i,omitempty"`
	Float float64      `cbor:"f,omitempty"`
	Str   string       `cbor:"s,omitempty"`
	Func  *funcPayload `cbor:"fn,omitempty"`
}

type funcPayload struct {
	ID         string   `cbor:"id"`
	Name       string   `cbor:"name,omitempty"`
	Parameters []string `cbor:"params,omitempty"`
	RestParam  string   `cbor:"rest,omitempty"`
	KwParam    string   `cbor:"kw,omitempty"`
	CodeIndex  int      `cbor:"code"` // index into the owning code's children
}

type locPayload struct {
	Line   int `cbor:"l,omitempty"`
	Column int `cbor:"c,omitempty"`
}

type handlerPayload struct {
	TryStart     int `cbor:"ts"`
	TryEnd       int `cbor:"te"`
	CatchStart   int `cbor:"cs,omitempty"`
	FinallyStart int `cbor:"fs,omitempty"`
}

// Marshal serializes a compiled code block, including all nested functions,
// into the CBOR persisted form.
func Marshal(code *Code) ([]byte, error) {
	root, err := encodeCode(code)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(envelope{Version: FormatVersion, Root: root})
}

// Unmarshal reconstructs a compiled code block from its persisted form.
func Unmarshal(data []byte) (*Code, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid bytecode payload: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version %d (want %d)", env.Version, FormatVersion)
	}
	return decodeCode(env.Root)
}

func encodeCode(c *Code) (codePayload, error) {
	childIndex := make(map[*Code]int, len(c.children))
	children := make([]codePayload, 0, len(c.children))
	for i, child := range c.children {
		childIndex[child] = i
		payload, err := encodeCode(child)
		if err != nil {
			return codePayload{}, err
		}
		children = append(children, payload)
	}

	constants := make([]constPayload, 0, len(c.constants))
	for _, value := range c.constants {
		switch v := value.(type) {
		case nil:
			constants = append(constants, constPayload{Kind: constNil})
		case bool:
			constants = append(constants, constPayload{Kind: constBool, Bool: v})
		case int64:
			constants = append(constants, constPayload{Kind: constInt, Int: v})
		case float64:
			constants = append(constants, constPayload{Kind: constFloat, Float: v})
		case string:
			constants = append(constants, constPayload{Kind: constString, Str: v})
		case *Function:
			idx, ok := childIndex[v.Code()]
			if !ok {
				return codePayload{}, fmt.Errorf("function %q body is not a child of its owning code", v.Name())
			}
			params := make([]string, v.ParameterCount())
			for i := range params {
				params[i] = v.Parameter(i)
			}
			constants = append(constants, constPayload{
				Kind: constFunc,
				Func: &funcPayload{
					ID:         v.ID(),
					Name:       v.Name(),
					Parameters: params,
					RestParam:  v.RestParam(),
					KwParam:    v.KwParam(),
					CodeIndex:  idx,
				},
			})
		default:
			return codePayload{}, fmt.Errorf("unsupported constant type %T", value)
		}
	}

	instructions := make([]uint16, len(c.instructions))
	for i, ins := range c.instructions {
		instructions[i] = uint16(ins)
	}
	locations := make([]locPayload, len(c.locations))
	for i, loc := range c.locations {
		locations[i] = locPayload{Line: loc.Line, Column: loc.Column}
	}
	handlers := make([]handlerPayload, len(c.exceptionHandlers))
	for i, h := range c.exceptionHandlers {
		handlers[i] = handlerPayload{
			TryStart:     h.TryStart,
			TryEnd:       h.TryEnd,
			CatchStart:   h.CatchStart,
			FinallyStart: h.FinallyStart,
		}
	}

	return codePayload{
		ID:           c.id,
		Name:         c.name,
		IsNamed:      c.isNamed,
		Instructions: instructions,
		Constants:    constants,
		Names:        c.names,
		Source:       c.source,
		Filename:     c.filename,
		Locations:    locations,
		MaxCallArgs:  c.maxCallArgs,
		LocalCount:   c.localCount,
		LocalNames:   c.localNames,
		Handlers:     handlers,
		Children:     children,
	}, nil
}

func decodeCode(p codePayload) (*Code, error) {
	children := make([]*Code, 0, len(p.Children))
	for _, childPayload := range p.Children {
		child, err := decodeCode(childPayload)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	constants := make([]any, 0, len(p.Constants))
	for _, c := range p.Constants {
		switch c.Kind {
		case constNil:
			constants = append(constants, nil)
		case constBool:
			constants = append(constants, c.Bool)
		case constInt:
			constants = append(constants, c.Int)
		case constFloat:
			constants = append(constants, c.Float)
		case constString:
			constants = append(constants, c.Str)
		case constFunc:
			if c.Func == nil {
				return nil, fmt.Errorf("function constant is missing its payload")
			}
			if c.Func.CodeIndex < 0 || c.Func.CodeIndex >= len(children) {
				return nil, fmt.Errorf("function %q references child code %d of %d",
					c.Func.Name, c.Func.CodeIndex, len(children))
			}
			constants = append(constants, NewFunction(FunctionParams{
				ID:         c.Func.ID,
				Name:       c.Func.Name,
				Parameters: c.Func.Parameters,
				RestParam:  c.Func.RestParam,
				KwParam:    c.Func.KwParam,
				Code:       children[c.Func.CodeIndex],
			}))
		default:
			return nil, fmt.Errorf("unsupported constant kind %q", c.Kind)
		}
	}

	instructions := make([]op.Code, len(p.Instructions))
	for i, ins := range p.Instructions {
		instructions[i] = op.Code(ins)
	}
	locations := make([]SourceLocation, len(p.Locations))
	for i, loc := range p.Locations {
		locations[i] = SourceLocation{Line: loc.Line, Column: loc.Column}
	}
	handlers := make([]ExceptionHandler, len(p.Handlers))
	for i, h := range p.Handlers {
		handlers[i] = ExceptionHandler{
			TryStart:     h.TryStart,
			TryEnd:       h.TryEnd,
			CatchStart:   h.CatchStart,
			FinallyStart: h.FinallyStart,
		}
	}

	return NewCode(CodeParams{
		ID:                p.ID,
		Name:              p.Name,
		IsNamed:           p.IsNamed,
		Children:          children,
		Instructions:      instructions,
		Constants:         constants,
		Names:             p.Names,
		Source:            p.Source,
		Filename:          p.Filename,
		Locations:         locations,
		MaxCallArgs:       p.MaxCallArgs,
		LocalCount:        p.LocalCount,
		LocalNames:        p.LocalNames,
		ExceptionHandlers: handlers,
	}), nil
}
