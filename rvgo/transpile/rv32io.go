package transpile

import (
	"github.com/ethereum-optimism/rvexe/rvgo/riscv"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// RV32IO translates the hint intrinsics, REVEAL, and ECALL.
type RV32IO struct{}

var _ Extension = RV32IO{}

func (RV32IO) Name() string { return "io" }

func (RV32IO) Claims() []Claim {
	return []Claim{
		{Opcode: riscv.OpCustom0, Funct3: []uint32{riscv.Funct3Hint, riscv.Funct3Reveal}},
		{Opcode: riscv.OpSystem, Funct3: []uint32{0}},
	}
}

func (RV32IO) Translate(in Instr) ([]vm.Instruction, error) {
	imm := in.Word >> 20
	switch in.Opcode() {
	case riscv.OpCustom0:
		switch in.Funct3() {
		case riscv.Funct3Hint:
			switch imm {
			case riscv.HintStoreW:
				return one(vm.Instruction{Opcode: vm.HINTSTOREW, A: in.Rd(), D: vm.AsRegister, E: vm.AsMemory, G: in.PC})
			case riscv.HintBuffer:
				return one(vm.Instruction{Opcode: vm.HINTBUFFER, A: in.Rd(), B: in.Rs1(), D: vm.AsRegister, E: vm.AsMemory, G: in.PC})
			}
			return nil, unsupported(in, "hint discriminant %d", imm)
		case riscv.Funct3Reveal:
			return one(vm.Instruction{Opcode: vm.REVEAL, A: in.Rs1(), B: in.Rd(), C: in.ImmI(), D: vm.AsRegister, G: in.PC})
		}
	case riscv.OpSystem:
		if in.Funct3() == 0 && in.Word == 0x00000073 {
			return one(vm.Instruction{Opcode: vm.ECALL, G: in.PC})
		}
		// EBREAK, xRET and WFI have no meaning in the proving VM
		return nil, unsupported(in, "system instruction")
	}
	return nil, unsupported(in, "not an io instruction")
}
