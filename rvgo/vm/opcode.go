package vm

import (
	"fmt"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
)

// Opcode is a global opcode of the target machine: an instruction-family offset plus a
// local opcode within that family.
type Opcode uint16

const (
	systemOffset = 0x000
	rv32iOffset  = 0x200
	rv32mOffset  = 0x300
	ioOffset     = 0x400
	classMask    = 0xF00
)

// system
const (
	TERMINATE Opcode = systemOffset + iota
	PHANTOM
	NOP
)

// 0x200 range: base integer instructions
const (
	ADD Opcode = rv32iOffset + iota
	SUB
	XOR
	OR
	AND
	SLL
	SRL
	SRA
	SLT
	SLTU
)

const (
	LOADW Opcode = rv32iOffset + 0x10 + iota
	LOADHU
	LOADBU
	STOREW
	STOREH
	STOREB
	SEXTB
	SEXTH
)

const (
	BEQ Opcode = rv32iOffset + 0x20 + iota
	BNE
	BLT
	BGE
	BLTU
	BGEU
)

const (
	JAL Opcode = rv32iOffset + 0x30 + iota
	JALR
	LOADI
)

// 0x300 range: multiplication and division
const (
	MUL Opcode = rv32mOffset + iota
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU
)

// 0x400 range: hints, public values and syscalls
const (
	HINTSTOREW Opcode = ioOffset + iota
	HINTBUFFER
	REVEAL
	ECALL
)

var opcodeNames = map[Opcode]string{
	TERMINATE: "TERMINATE", PHANTOM: "PHANTOM", NOP: "NOP",
	ADD: "ADD", SUB: "SUB", XOR: "XOR", OR: "OR", AND: "AND",
	SLL: "SLL", SRL: "SRL", SRA: "SRA", SLT: "SLT", SLTU: "SLTU",
	LOADW: "LOADW", LOADHU: "LOADHU", LOADBU: "LOADBU",
	STOREW: "STOREW", STOREH: "STOREH", STOREB: "STOREB",
	SEXTB: "SEXTB", SEXTH: "SEXTH",
	BEQ: "BEQ", BNE: "BNE", BLT: "BLT", BGE: "BGE", BLTU: "BLTU", BGEU: "BGEU",
	JAL: "JAL", JALR: "JALR", LOADI: "LOADI",
	MUL: "MUL", MULH: "MULH", MULHSU: "MULHSU", MULHU: "MULHU",
	DIV: "DIV", DIVU: "DIVU", REM: "REM", REMU: "REMU",
	HINTSTOREW: "HINTSTOREW", HINTBUFFER: "HINTBUFFER", REVEAL: "REVEAL", ECALL: "ECALL",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%03x)", uint16(op))
}

func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Extension is the instruction family that must be configured for the opcode to execute.
func (op Opcode) Extension() config.Extension {
	switch op & classMask {
	case rv32mOffset:
		return config.RV32M
	case ioOffset:
		return config.IO
	default:
		return config.RV32I
	}
}

// IsBranch reports whether the C operand is a static instruction index.
func (op Opcode) IsBranch() bool {
	return op >= BEQ && op <= BGEU
}

// HasStaticTarget reports whether the instruction carries a jump target that is known at
// translation time.
func (op Opcode) HasStaticTarget() bool {
	return op.IsBranch() || op == JAL
}
