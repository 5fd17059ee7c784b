package riscv

// Major opcodes (instruction bits [6:0]) of the RV32 base encoding.
const (
	OpLoad    = 0x03 // 000_0011
	OpMiscMem = 0x0F // 000_1111
	OpImm     = 0x13 // 001_0011
	OpAuipc   = 0x17 // 001_0111
	OpStore   = 0x23 // 010_0011
	OpReg     = 0x33 // 011_0011
	OpLui     = 0x37 // 011_0111
	OpBranch  = 0x63 // 110_0011
	OpJalr    = 0x67 // 110_0111
	OpJal     = 0x6F // 110_1111
	OpSystem  = 0x73 // 111_0011
	// custom-0 is used for the intrinsics the proving VM understands.
	OpCustom0 = 0x0B // 000_1011
)

// funct7 values of the OP major opcode.
const (
	Funct7Base = 0x00
	Funct7Alt  = 0x20 // SUB, SRA
	Funct7M    = 0x01 // RV32M
)

// funct3 values of the custom-0 intrinsics.
const (
	Funct3Terminate = 0b000
	Funct3Hint      = 0b001
	Funct3Reveal    = 0b010
	Funct3Phantom   = 0b011
)

// immediate discriminants of the custom-0 intrinsics.
const (
	HintStoreW = 0
	HintBuffer = 1

	PhantomHintInput = 0
	PhantomPrintStr  = 1
)

const (
	SysRead      = 63
	SysWrite     = 64
	SysExit      = 93
	SysExitGroup = 94

	FdStdin  = 0
	FdStdout = 1
	FdStderr = 2

	// Registers of the syscall ABI
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// Revert codes of the target VM, reported as part of an execution fault.
const (
	ErrUnknownOpCode        = uint32(0xf001c0de)
	ErrInvalidSyscall       = uint32(0xf001ca11)
	ErrDisabledExtension    = uint32(0xf001e7e0)
	ErrInvalidRegister      = uint32(0xbad4e9)
	ErrNotAlignedAddr       = uint32(0xbad10ad0)
	ErrInvalidJumpTarget    = uint32(0xbad1a770)
	ErrPCOutOfProgram       = uint32(0xbadc0de0)
	ErrHintStreamExhausted  = uint32(0xbadf00d0)
	ErrInputStreamExhausted = uint32(0xbadf00d1)
	ErrUnknownPhantom       = uint32(0xbad0f4a7)
	ErrRevealOutOfBounds    = uint32(0xbad4e7e1)
)
