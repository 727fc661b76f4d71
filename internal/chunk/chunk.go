// Package chunk holds a growable sequence of bytecode instructions paired
// with the source line each was emitted from.
package chunk

import (
	"fmt"

	"clox-go/internal/value"
)

type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpReturn
)

var opNames = map[OpCode]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpReturn:       "OP_RETURN",
}

func (op OpCode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// Chunk is one compiled program: its instructions plus per-instruction
// source-line metadata. Instructions are addressed by 0-based position.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

func New() *Chunk {
	return &Chunk{}
}

// Write appends a single byte of bytecode, recording the source line it
// came from.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Patch overwrites the byte at offset. Used to back-patch a placeholder
// jump displacement once its target is known (spec.md §4.4).
func (c *Chunk) Patch(offset int, b byte) {
	c.Code[offset] = b
}

// Disassemble prints every instruction in the chunk, one per line, for
// debugging via the -disassemble CLI flag.
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(offset)
	}
}

func (c *Chunk) disassembleInstruction(offset int) int {
	fmt.Printf("%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Print("   | ")
	} else {
		fmt.Printf("%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant:
		return c.constantInstruction(op, offset)
	case OpGetGlobal, OpSetGlobal, OpDefineGlobal:
		return c.constantInstruction(op, offset)
	case OpGetLocal, OpSetLocal:
		return c.byteInstruction(op, offset)
	case OpJump, OpJumpIfFalse, OpLoop:
		return c.jumpInstruction(op, offset)
	default:
		return c.simpleInstruction(op, offset)
	}
}

func (c *Chunk) simpleInstruction(op OpCode, offset int) int {
	fmt.Println(op)
	return offset + 1
}

func (c *Chunk) constantInstruction(op OpCode, offset int) int {
	constant := c.Code[offset+1]
	fmt.Printf("%-18s %4d '%v'\n", op, constant, c.Constants[constant])
	return offset + 2
}

func (c *Chunk) byteInstruction(op OpCode, offset int) int {
	slot := c.Code[offset+1]
	fmt.Printf("%-18s %4d\n", op, slot)
	return offset + 2
}

func (c *Chunk) jumpInstruction(op OpCode, offset int) int {
	displacement := int(uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2]))
	sign := 1
	if op == OpLoop {
		sign = -1
	}
	fmt.Printf("%-18s %4d -> %d\n", op, offset, offset+3+sign*displacement)
	return offset + 3
}
