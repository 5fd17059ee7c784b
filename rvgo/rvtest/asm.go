package rvtest

import "github.com/ethereum-optimism/rvexe/rvgo/riscv"

// Register numbers of the standard ABI names used in tests.
const (
	Zero = 0
	RA   = 1
	SP   = 2
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A7   = 17
)

func R(op, f3, f7, rd, rs1, rs2 uint32) uint32 {
	return f7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func I(op, f3, rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func S(op, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7F)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (u&0x1F)<<7 | op
}

func B(f3, rs1, rs2 uint32, off int32) uint32 {
	u := uint32(off)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3F)<<25 | rs2<<20 | rs1<<15 | f3<<12 | ((u>>1)&0xF)<<8 | ((u>>11)&1)<<7 | riscv.OpBranch
}

func U(op, rd uint32, imm uint32) uint32 {
	return imm&^0xFFF | rd<<7 | op
}

func J(rd uint32, off int32) uint32 {
	u := uint32(off)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xFF)<<12 | rd<<7 | riscv.OpJal
}

func LUI(rd, imm uint32) uint32   { return U(riscv.OpLui, rd, imm) }
func AUIPC(rd, imm uint32) uint32 { return U(riscv.OpAuipc, rd, imm) }
func JAL(rd uint32, off int32) uint32 {
	return J(rd, off)
}
func JALR(rd, rs1 uint32, imm int32) uint32 { return I(riscv.OpJalr, 0, rd, rs1, imm) }

func BEQ(rs1, rs2 uint32, off int32) uint32  { return B(0, rs1, rs2, off) }
func BNE(rs1, rs2 uint32, off int32) uint32  { return B(1, rs1, rs2, off) }
func BLT(rs1, rs2 uint32, off int32) uint32  { return B(4, rs1, rs2, off) }
func BGE(rs1, rs2 uint32, off int32) uint32  { return B(5, rs1, rs2, off) }
func BLTU(rs1, rs2 uint32, off int32) uint32 { return B(6, rs1, rs2, off) }
func BGEU(rs1, rs2 uint32, off int32) uint32 { return B(7, rs1, rs2, off) }

func LB(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpLoad, 0, rd, rs1, imm) }
func LH(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpLoad, 1, rd, rs1, imm) }
func LW(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpLoad, 2, rd, rs1, imm) }
func LBU(rd, rs1 uint32, imm int32) uint32 { return I(riscv.OpLoad, 4, rd, rs1, imm) }
func LHU(rd, rs1 uint32, imm int32) uint32 { return I(riscv.OpLoad, 5, rd, rs1, imm) }

func SB(rs2, rs1 uint32, imm int32) uint32 { return S(riscv.OpStore, 0, rs1, rs2, imm) }
func SH(rs2, rs1 uint32, imm int32) uint32 { return S(riscv.OpStore, 1, rs1, rs2, imm) }
func SW(rs2, rs1 uint32, imm int32) uint32 { return S(riscv.OpStore, 2, rs1, rs2, imm) }

func ADDI(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpImm, 0, rd, rs1, imm) }
func SLTI(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpImm, 2, rd, rs1, imm) }
func SLTIU(rd, rs1 uint32, imm int32) uint32 { return I(riscv.OpImm, 3, rd, rs1, imm) }
func XORI(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpImm, 4, rd, rs1, imm) }
func ORI(rd, rs1 uint32, imm int32) uint32   { return I(riscv.OpImm, 6, rd, rs1, imm) }
func ANDI(rd, rs1 uint32, imm int32) uint32  { return I(riscv.OpImm, 7, rd, rs1, imm) }
func SLLI(rd, rs1, shamt uint32) uint32      { return R(riscv.OpImm, 1, 0, rd, rs1, shamt) }
func SRLI(rd, rs1, shamt uint32) uint32      { return R(riscv.OpImm, 5, 0, rd, rs1, shamt) }
func SRAI(rd, rs1, shamt uint32) uint32      { return R(riscv.OpImm, 5, riscv.Funct7Alt, rd, rs1, shamt) }

func ADD(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 0, 0, rd, rs1, rs2) }
func SUB(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 0, riscv.Funct7Alt, rd, rs1, rs2) }
func SLL(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 1, 0, rd, rs1, rs2) }
func SLT(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 2, 0, rd, rs1, rs2) }
func SLTU(rd, rs1, rs2 uint32) uint32 { return R(riscv.OpReg, 3, 0, rd, rs1, rs2) }
func XOR(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 4, 0, rd, rs1, rs2) }
func SRL(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 5, 0, rd, rs1, rs2) }
func SRA(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 5, riscv.Funct7Alt, rd, rs1, rs2) }
func OR(rd, rs1, rs2 uint32) uint32   { return R(riscv.OpReg, 6, 0, rd, rs1, rs2) }
func AND(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 7, 0, rd, rs1, rs2) }

func MUL(rd, rs1, rs2 uint32) uint32    { return R(riscv.OpReg, 0, riscv.Funct7M, rd, rs1, rs2) }
func MULH(rd, rs1, rs2 uint32) uint32   { return R(riscv.OpReg, 1, riscv.Funct7M, rd, rs1, rs2) }
func MULHSU(rd, rs1, rs2 uint32) uint32 { return R(riscv.OpReg, 2, riscv.Funct7M, rd, rs1, rs2) }
func MULHU(rd, rs1, rs2 uint32) uint32  { return R(riscv.OpReg, 3, riscv.Funct7M, rd, rs1, rs2) }
func DIV(rd, rs1, rs2 uint32) uint32    { return R(riscv.OpReg, 4, riscv.Funct7M, rd, rs1, rs2) }
func DIVU(rd, rs1, rs2 uint32) uint32   { return R(riscv.OpReg, 5, riscv.Funct7M, rd, rs1, rs2) }
func REM(rd, rs1, rs2 uint32) uint32    { return R(riscv.OpReg, 6, riscv.Funct7M, rd, rs1, rs2) }
func REMU(rd, rs1, rs2 uint32) uint32   { return R(riscv.OpReg, 7, riscv.Funct7M, rd, rs1, rs2) }

func FENCE() uint32  { return I(riscv.OpMiscMem, 0, 0, 0, 0x0FF) }
func ECALL() uint32  { return 0x00000073 }
func EBREAK() uint32 { return 0x00100073 }
func NOP() uint32    { return ADDI(Zero, Zero, 0) }

// LI loads a 12 bit signed immediate.
func LI(rd uint32, imm int32) uint32 { return ADDI(rd, Zero, imm) }

// Terminate ends the program with the given exit code.
func Terminate(code uint32) uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Terminate, 0, 0, int32(code))
}

func HintInput() uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Phantom, 0, 0, riscv.PhantomHintInput)
}

// PrintStr prints the string at the address in rd, of the length in rs1.
func PrintStr(rd, rs1 uint32) uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Phantom, rd, rs1, riscv.PhantomPrintStr)
}

// HintStoreW stores the next hint word at the address in rd.
func HintStoreW(rd uint32) uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Hint, rd, 0, riscv.HintStoreW)
}

// HintBuffer stores as many hint words as rs1 holds at the address in rd.
func HintBuffer(rd, rs1 uint32) uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Hint, rd, rs1, riscv.HintBuffer)
}

// Reveal publishes rs1 at public-values offset rd+imm.
func Reveal(rs1, rd uint32, imm int32) uint32 {
	return I(riscv.OpCustom0, riscv.Funct3Reveal, rd, rs1, imm)
}
