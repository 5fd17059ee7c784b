package transpile

import (
	"github.com/ethereum-optimism/rvexe/rvgo/riscv"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// RV32M translates the multiplication and division extension.
type RV32M struct{}

var _ Extension = RV32M{}

func (RV32M) Name() string { return "rv32m" }

func (RV32M) Claims() []Claim {
	return []Claim{
		{Opcode: riscv.OpReg, Funct7: []uint32{riscv.Funct7M}},
	}
}

var mulDivOps = [8]vm.Opcode{vm.MUL, vm.MULH, vm.MULHSU, vm.MULHU, vm.DIV, vm.DIVU, vm.REM, vm.REMU}

func (RV32M) Translate(in Instr) ([]vm.Instruction, error) {
	if in.Opcode() != riscv.OpReg || in.Funct7() != riscv.Funct7M {
		return nil, unsupported(in, "not a multiply/divide instruction")
	}
	return one(alu(mulDivOps[in.Funct3()], in, in.Rs2(), vm.AsRegister))
}
