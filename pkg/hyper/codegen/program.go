package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

// -----------------------------
// Instruction encoding
// -----------------------------

// Opcode is the operation in the top byte of an instruction.
type Opcode uint8

const (
	OpNop Opcode = iota

	// output
	OpText     // write consts[imm]
	OpEscape   // pop v; write escape_html(v)
	OpChildren // write the children of the current call

	// values
	OpEval   // push the value of slot imm
	OpConst  // push consts[imm]
	OpConcat // pop imm values; push their concatenated text
	OpPop    // drop top

	// attributes
	OpAttr       // pop v; write name=consts[imm] per format_attrs
	OpAriaAttr   // pop v; as OpAttr with aria booleans
	OpAttrEscape // pop v; write v escaped for a quoted attribute
	OpClass      // pop v; write format_classes(v), escaped
	OpStyle      // pop v; write format_styles(v), escaped
	OpData       // pop mapping; write data-* attributes
	OpAria       // pop mapping; write aria-* attributes
	OpSpread     // pop mapping; write format_attrs(mapping)

	// control flow
	OpJump        // ip = imm
	OpJumpIfFalse // pop cond; if falsy => ip = imm
	OpMatch       // pop pattern; push subject (top, kept) == pattern

	// components
	OpCapture    // redirect output to a new buffer
	OpEndCapture // restore output; push the captured markup
	OpNewArgs    // push an empty argument mapping
	OpSetArg     // pop v; args (top)[consts[imm]] = v
	OpMergeArgs  // pop mapping; merge into args (top)
	OpCall       // imm = callee slot<<1 | has children; pop [children], args, callee; write result
)

var opNames = [...]string{
	OpNop:         "NOP",
	OpText:        "TEXT",
	OpEscape:      "ESCAPE",
	OpChildren:    "CHILDREN",
	OpEval:        "EVAL",
	OpConst:       "CONST",
	OpConcat:      "CONCAT",
	OpPop:         "POP",
	OpAttr:        "ATTR",
	OpAriaAttr:    "ARIA_ATTR",
	OpAttrEscape:  "ATTR_ESCAPE",
	OpClass:       "CLASS",
	OpStyle:       "STYLE",
	OpData:        "DATA",
	OpAria:        "ARIA",
	OpSpread:      "SPREAD",
	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpMatch:       "MATCH",
	OpCapture:     "CAPTURE",
	OpEndCapture:  "END_CAPTURE",
	OpNewArgs:     "NEW_ARGS",
	OpSetArg:      "SET_ARG",
	OpMergeArgs:   "MERGE_ARGS",
	OpCall:        "CALL",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// pack/unpack helpers
func pack(op Opcode, imm uint32) uint32 { return uint32(op)<<24 | (imm & 0xFFFFFF) }

// Op returns the opcode of an instruction.
func Op(i uint32) Opcode { return Opcode(i >> 24) }

// Imm returns the immediate operand of an instruction.
func Imm(i uint32) int { return int(i & 0xFFFFFF) }

// -----------------------------
// Program
// -----------------------------

// Program is a generated rendering procedure.
type Program struct {
	Name   string
	Code   []uint32
	Consts []any

	// Exprs holds the parsed expression of every slot of a compiled
	// template. Values holds the concrete slot values of an eager one.
	Exprs  []ast.Expression
	Values []any

	// Aux statements run before the body, in a scope enclosing the props.
	Aux []ast.Statement

	// Props describes the declared props for the listing header.
	Props []string

	// Slots names each slot for diagnostics; Lines holds its source line.
	Slots []string
	Lines []int
}

// Eager reports whether slot values are concrete.
func (p *Program) Eager() bool { return p.Values != nil }

// Listing returns a readable disassembly of the program. It is the
// generated source written by the debug channel.
func (p *Program) Listing() string {
	var sb strings.Builder
	name := p.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(&sb, "; program %s\n", name)
	if len(p.Props) > 0 {
		sb.WriteString("; props\n")
		for _, prop := range p.Props {
			fmt.Fprintf(&sb, ";   %s\n", prop)
		}
	}
	if len(p.Aux) > 0 {
		sb.WriteString("; aux\n")
		for _, stmt := range p.Aux {
			fmt.Fprintf(&sb, ";   %s\n", stmt.String())
		}
	}
	if len(p.Slots) > 0 {
		sb.WriteString("; slots\n")
		for i, s := range p.Slots {
			fmt.Fprintf(&sb, ";   #%d %s\n", i, s)
		}
	}
	for pc, ins := range p.Code {
		line := fmt.Sprintf("%04d  %-14s%s", pc, Op(ins), p.operand(ins))
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Program) operand(ins uint32) string {
	imm := Imm(ins)
	switch Op(ins) {
	case OpText, OpConst, OpAttr, OpAriaAttr, OpSetArg:
		if imm < len(p.Consts) {
			return constText(p.Consts[imm])
		}
	case OpEval:
		return p.slot(imm)
	case OpCall:
		if imm&1 == 1 {
			return p.slot(imm>>1) + ", children"
		}
		return p.slot(imm >> 1)
	case OpJump, OpJumpIfFalse:
		return fmt.Sprintf("-> %04d", imm)
	case OpConcat:
		return strconv.Itoa(imm)
	}
	return ""
}

func (p *Program) slot(i int) string {
	if i < len(p.Slots) {
		return "#" + strconv.Itoa(i) + " " + p.Slots[i]
	}
	return "#" + strconv.Itoa(i)
}

func constText(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return object.Inspect(v)
}
