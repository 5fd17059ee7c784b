package vm

import (
	"fmt"
	"sort"
)

// Address spaces of an operand.
const (
	AsImmediate = 0
	AsRegister  = 1
	AsMemory    = 2
)

// Instruction is one target machine instruction. The meaning of the operands depends on
// the opcode family:
//
//	ALU (ADD..SLTU)        A=rd B=rs1 C=rs2 or immediate, D=AsRegister, E=address space of C
//	MUL..REMU              A=rd B=rs1 C=rs2
//	LOADW/LOADHU/LOADBU    A=rd B=rs1 C=offset, E=AsMemory
//	STOREW/STOREH/STOREB   A=rs2 B=rs1 C=offset, E=AsMemory
//	SEXTB/SEXTH            A=rd
//	BEQ..BGEU              A=rs1 B=rs2 C=target instruction index
//	JAL                    A=rd B=target instruction index C=link value
//	JALR                   A=rd B=rs1 C=offset F=link value
//	LOADI                  A=rd C=value
//	TERMINATE              C=exit code
//	PHANTOM                A=rd B=rs1 C=discriminant
//	HINTSTOREW             A=rd (destination address register)
//	HINTBUFFER             A=rd (destination address register) B=rs1 (word count register)
//	REVEAL                 A=rs1 (value register) B=rd (index register) C=offset
//
// G holds the source address the instruction was translated from.
type Instruction struct {
	Opcode Opcode `json:"opcode"`
	A      uint32 `json:"a"`
	B      uint32 `json:"b"`
	C      uint32 `json:"c"`
	D      uint32 `json:"d"`
	E      uint32 `json:"e"`
	F      uint32 `json:"f"`
	G      uint32 `json:"g"`
}

// Target returns the static jump target of a branch or JAL.
func (ins *Instruction) Target() uint32 {
	if ins.Opcode == JAL {
		return ins.B
	}
	return ins.C
}

func (ins *Instruction) SetTarget(v uint32) {
	if ins.Opcode == JAL {
		ins.B = v
	} else {
		ins.C = v
	}
}

func (ins Instruction) String() string {
	return fmt.Sprintf("%s a=%d b=%d c=0x%x d=%d e=%d f=0x%x g=0x%x", ins.Opcode, ins.A, ins.B, ins.C, ins.D, ins.E, ins.F, ins.G)
}

// Block maps a source instruction address to the index of its first translated instruction.
type Block struct {
	PC    uint32 `json:"pc"`
	Index uint32 `json:"index"`
}

// Executable is a transpiled program: target instructions, the source pc map,
// static memory and the entry address.
type Executable struct {
	Instructions []Instruction `json:"instructions"`
	// PCMap is sorted by PC.
	PCMap []Block `json:"pcMap"`
	// Entry is the source address execution starts at.
	Entry  uint32            `json:"entry"`
	Memory map[uint32]uint32 `json:"memory"`
}

// Lookup returns the instruction index translated from the given source address.
func (e *Executable) Lookup(pc uint32) (uint32, bool) {
	i := sort.Search(len(e.PCMap), func(i int) bool {
		return e.PCMap[i].PC >= pc
	})
	if i < len(e.PCMap) && e.PCMap[i].PC == pc {
		return e.PCMap[i].Index, true
	}
	return 0, false
}
