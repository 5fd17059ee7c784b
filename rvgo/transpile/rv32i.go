package transpile

import (
	"github.com/ethereum-optimism/rvexe/rvgo/riscv"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// RV32I translates the base integer instruction set, the fences, and the
// TERMINATE and PHANTOM system intrinsics.
type RV32I struct{}

var _ Extension = RV32I{}

func (RV32I) Name() string { return "rv32i" }

func (RV32I) Claims() []Claim {
	return []Claim{
		{Opcode: riscv.OpLui},
		{Opcode: riscv.OpAuipc},
		{Opcode: riscv.OpJal},
		{Opcode: riscv.OpJalr, Funct3: []uint32{0}},
		{Opcode: riscv.OpBranch, Funct3: []uint32{0, 1, 4, 5, 6, 7}},
		{Opcode: riscv.OpLoad, Funct3: []uint32{0, 1, 2, 4, 5}},
		{Opcode: riscv.OpStore, Funct3: []uint32{0, 1, 2}},
		{Opcode: riscv.OpImm},
		{Opcode: riscv.OpReg, Funct7: []uint32{riscv.Funct7Base, riscv.Funct7Alt}},
		{Opcode: riscv.OpMiscMem, Funct3: []uint32{0, 1}},
		{Opcode: riscv.OpCustom0, Funct3: []uint32{riscv.Funct3Terminate, riscv.Funct3Phantom}},
	}
}

var (
	branchOps = [8]vm.Opcode{0: vm.BEQ, 1: vm.BNE, 4: vm.BLT, 5: vm.BGE, 6: vm.BLTU, 7: vm.BGEU}
	regOps    = [8]vm.Opcode{vm.ADD, vm.SLL, vm.SLT, vm.SLTU, vm.XOR, vm.SRL, vm.OR, vm.AND}
)

func (RV32I) Translate(in Instr) ([]vm.Instruction, error) {
	switch in.Opcode() {
	case riscv.OpLui:
		return one(vm.Instruction{Opcode: vm.LOADI, A: in.Rd(), C: in.ImmU(), G: in.PC})
	case riscv.OpAuipc:
		// the result is a source address, consistent with link values and the rebiased memory
		return one(vm.Instruction{Opcode: vm.LOADI, A: in.Rd(), C: in.PC + in.ImmU(), G: in.PC})
	case riscv.OpJal:
		return one(vm.Instruction{Opcode: vm.JAL, A: in.Rd(), B: in.PC + in.ImmJ(), C: in.PC + 4, G: in.PC})
	case riscv.OpJalr:
		return one(vm.Instruction{Opcode: vm.JALR, A: in.Rd(), B: in.Rs1(), C: in.ImmI(), F: in.PC + 4, G: in.PC})
	case riscv.OpBranch:
		op := branchOps[in.Funct3()]
		if op == 0 {
			return nil, unsupported(in, "branch funct3 %d", in.Funct3())
		}
		return one(vm.Instruction{Opcode: op, A: in.Rs1(), B: in.Rs2(), C: in.PC + in.ImmB(), G: in.PC})
	case riscv.OpLoad:
		load := vm.Instruction{A: in.Rd(), B: in.Rs1(), C: in.ImmI(), D: vm.AsRegister, E: vm.AsMemory, G: in.PC}
		switch in.Funct3() {
		case 0: // LB
			load.Opcode = vm.LOADBU
			return []vm.Instruction{load, {Opcode: vm.SEXTB, A: in.Rd(), G: in.PC}}, nil
		case 1: // LH
			load.Opcode = vm.LOADHU
			return []vm.Instruction{load, {Opcode: vm.SEXTH, A: in.Rd(), G: in.PC}}, nil
		case 2: // LW
			load.Opcode = vm.LOADW
		case 4: // LBU
			load.Opcode = vm.LOADBU
		case 5: // LHU
			load.Opcode = vm.LOADHU
		default:
			return nil, unsupported(in, "load funct3 %d", in.Funct3())
		}
		return one(load)
	case riscv.OpStore:
		store := vm.Instruction{A: in.Rs2(), B: in.Rs1(), C: in.ImmS(), D: vm.AsRegister, E: vm.AsMemory, G: in.PC}
		switch in.Funct3() {
		case 0: // SB
			store.Opcode = vm.STOREB
		case 1: // SH
			store.Opcode = vm.STOREH
		case 2: // SW
			store.Opcode = vm.STOREW
		default:
			return nil, unsupported(in, "store funct3 %d", in.Funct3())
		}
		return one(store)
	case riscv.OpImm:
		switch in.Funct3() {
		case 1: // SLLI
			if in.Funct7() != riscv.Funct7Base {
				return nil, unsupported(in, "slli funct7 0x%02x", in.Funct7())
			}
			return one(alu(vm.SLL, in, in.Shamt(), vm.AsImmediate))
		case 5: // SRLI, SRAI
			switch in.Funct7() {
			case riscv.Funct7Base:
				return one(alu(vm.SRL, in, in.Shamt(), vm.AsImmediate))
			case riscv.Funct7Alt:
				return one(alu(vm.SRA, in, in.Shamt(), vm.AsImmediate))
			default:
				return nil, unsupported(in, "shift funct7 0x%02x", in.Funct7())
			}
		default:
			return one(alu(regOps[in.Funct3()], in, in.ImmI(), vm.AsImmediate))
		}
	case riscv.OpReg:
		switch in.Funct7() {
		case riscv.Funct7Base:
			return one(alu(regOps[in.Funct3()], in, in.Rs2(), vm.AsRegister))
		case riscv.Funct7Alt:
			switch in.Funct3() {
			case 0:
				return one(alu(vm.SUB, in, in.Rs2(), vm.AsRegister))
			case 5:
				return one(alu(vm.SRA, in, in.Rs2(), vm.AsRegister))
			}
		}
		return nil, unsupported(in, "funct3 %d funct7 0x%02x", in.Funct3(), in.Funct7())
	case riscv.OpMiscMem:
		// single hart, no caches: FENCE and FENCE.I have no observable effect
		return one(nop(in))
	case riscv.OpCustom0:
		switch in.Funct3() {
		case riscv.Funct3Terminate:
			return one(vm.Instruction{Opcode: vm.TERMINATE, C: in.Word >> 20, G: in.PC})
		case riscv.Funct3Phantom:
			return one(vm.Instruction{Opcode: vm.PHANTOM, A: in.Rd(), B: in.Rs1(), C: in.Word >> 20, G: in.PC})
		}
	}
	return nil, unsupported(in, "not a base integer instruction")
}
