package transpile

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Instr is a 32 bit source instruction word at its (rebiased) address.
type Instr struct {
	PC   uint32
	Word uint32
}

func (in Instr) Opcode() uint32 { return in.Word & 0x7F }
func (in Instr) Rd() uint32     { return (in.Word >> 7) & 0x1F }
func (in Instr) Funct3() uint32 { return (in.Word >> 12) & 0x7 }
func (in Instr) Rs1() uint32    { return (in.Word >> 15) & 0x1F }
func (in Instr) Rs2() uint32    { return (in.Word >> 20) & 0x1F }
func (in Instr) Funct7() uint32 { return in.Word >> 25 }

// signExtend extends the bit at position signBit to the upper bits.
func signExtend(v uint32, signBit uint) uint32 {
	shift := 31 - signBit
	return uint32(int32(v<<shift) >> shift)
}

func (in Instr) ImmI() uint32 {
	return signExtend(in.Word>>20, 11)
}

func (in Instr) ImmS() uint32 {
	return signExtend((in.Word>>25)<<5|(in.Word>>7)&0x1F, 11)
}

func (in Instr) ImmB() uint32 {
	return signExtend(
		((in.Word>>8)&0xF)<<1|
			((in.Word>>25)&0x3F)<<5|
			((in.Word>>7)&1)<<11|
			(in.Word>>31)<<12,
		12)
}

func (in Instr) ImmU() uint32 {
	return in.Word &^ 0xFFF
}

func (in Instr) ImmJ() uint32 {
	return signExtend(
		((in.Word>>21)&0x3FF)<<1|
			((in.Word>>20)&1)<<11|
			((in.Word>>12)&0xFF)<<12|
			(in.Word>>31)<<20,
		20)
}

// Shamt is the shift amount of a shift-by-immediate instruction.
func (in Instr) Shamt() uint32 { return in.Rs2() }

// Disassemble renders the word in GNU assembler syntax, or as a raw .word directive when
// the word is not a standard instruction.
func Disassemble(word uint32) string {
	inst, err := riscv64asm.Decode(binary.LittleEndian.AppendUint32(nil, word))
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	return riscv64asm.GNUSyntax(inst)
}

func (in Instr) String() string {
	return fmt.Sprintf("%08x: %08x %s", in.PC, in.Word, Disassemble(in.Word))
}
