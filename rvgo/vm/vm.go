package vm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ethereum-optimism/rvexe/rvgo/riscv"
)

// Step runs a single target instruction.
// A fault of the guest program is returned as an error wrapping ErrExecutionFault.
func (m *InstrumentedState) Step() (outErr error) {
	s := m.state
	if s.Exited {
		return nil
	}
	var revertCode uint32
	defer func() {
		if err := recover(); err != nil {
			outErr = fmt.Errorf("%w: revert %x at step %d (source pc %08x): %v", ErrExecutionFault, revertCode, s.Step, m.SourcePC(), err)
		}
	}()

	revertWithCode := func(code uint32, err error) {
		revertCode = code
		panic(err)
	}

	loadRegister := func(reg uint32) uint32 {
		if reg >= 32 {
			revertWithCode(riscv.ErrInvalidRegister, fmt.Errorf("invalid register %d", reg))
		}
		return s.Registers[reg]
	}
	writeRegister := func(reg uint32, v uint32) {
		if reg >= 32 {
			revertWithCode(riscv.ErrInvalidRegister, fmt.Errorf("invalid register %d", reg))
		}
		if reg == 0 { // x0 is hardwired to zero
			return
		}
		s.Registers[reg] = v
	}
	checkAligned := func(addr uint32, size uint32) {
		if addr&(size-1) != 0 {
			revertWithCode(riscv.ErrNotAlignedAddr, fmt.Errorf("address %08x not aligned to %d bytes", addr, size))
		}
	}
	loadMem := func(addr uint32, size uint32) uint32 {
		checkAligned(addr, size)
		var buf [4]byte
		m.state.Memory.GetUnaligned(addr, buf[:size])
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	}
	storeMem := func(addr uint32, size uint32, v uint32) {
		checkAligned(addr, size)
		buf := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		m.state.Memory.SetUnaligned(addr, buf[:size])
	}
	jumpTo := func(addr uint32) uint32 {
		idx, ok := m.exe.Lookup(addr)
		if !ok {
			revertWithCode(riscv.ErrInvalidJumpTarget, fmt.Errorf("jump to untranslated address %08x", addr))
		}
		return idx
	}

	sysCall := func() {
		a7 := loadRegister(riscv.RegA7)
		switch a7 {
		case riscv.SysExit, riscv.SysExitGroup:
			s.ExitCode = loadRegister(riscv.RegA0)
			s.Exited = true
		case riscv.SysWrite:
			fd := loadRegister(riscv.RegA0)    // A0 = fd
			addr := loadRegister(riscv.RegA1)  // A1 = *buf addr
			count := loadRegister(riscv.RegA2) // A2 = count
			var w io.Writer
			switch fd {
			case riscv.FdStdout:
				w = m.stdOut
			case riscv.FdStderr:
				w = m.stdErr
			}
			if w == nil {
				writeRegister(riscv.RegA0, ebadf)
				return
			}
			if _, err := io.Copy(w, m.state.Memory.ReadMemoryRange(addr, uint64(count))); err != nil {
				panic(fmt.Errorf("fd %d writing err: %w", fd, err))
			}
			writeRegister(riscv.RegA0, count) // write completes fully in single instruction step
		case riscv.SysRead:
			fd := loadRegister(riscv.RegA0)
			addr := loadRegister(riscv.RegA1)
			count := loadRegister(riscv.RegA2)
			if fd != riscv.FdStdin {
				writeRegister(riscv.RegA0, ebadf)
				return
			}
			n := min(count, uint32(len(m.hintStream)))
			dat, _ := m.readHint(n)
			m.state.Memory.SetUnaligned(addr, dat)
			writeRegister(riscv.RegA0, n)
		default:
			revertWithCode(riscv.ErrInvalidSyscall, fmt.Errorf("unrecognized system call: %d", a7))
		}
	}

	phantom := func(ins Instruction) {
		switch ins.C {
		case riscv.PhantomHintInput:
			if !m.nextInput() {
				revertWithCode(riscv.ErrInputStreamExhausted, errors.New("no more input vectors"))
			}
		case riscv.PhantomPrintStr:
			addr := loadRegister(ins.A)
			count := loadRegister(ins.B)
			if _, err := io.Copy(m.stdOut, m.state.Memory.ReadMemoryRange(addr, uint64(count))); err != nil {
				panic(fmt.Errorf("stdout writing err: %w", err))
			}
		default:
			revertWithCode(riscv.ErrUnknownPhantom, fmt.Errorf("unknown phantom discriminant %d", ins.C))
		}
	}

	if s.PC >= uint32(len(m.exe.Instructions)) {
		revertWithCode(riscv.ErrPCOutOfProgram, fmt.Errorf("pc %d is outside of the program (%d instructions)", s.PC, len(m.exe.Instructions)))
	}
	ins := m.exe.Instructions[s.PC]
	if !m.cfg.Enabled(ins.Opcode.Extension()) {
		revertWithCode(riscv.ErrDisabledExtension, fmt.Errorf("opcode %s requires extension %s", ins.Opcode, ins.Opcode.Extension()))
	}
	next := s.PC + 1

	operandC := func() uint32 {
		if ins.E == AsImmediate {
			return ins.C
		}
		return loadRegister(ins.C)
	}

	switch ins.Opcode {
	case ADD, SUB, XOR, OR, AND, SLL, SRL, SRA, SLT, SLTU:
		rs1Value := loadRegister(ins.B)
		c := operandC()
		var rdValue uint32
		switch ins.Opcode {
		case ADD:
			rdValue = rs1Value + c
		case SUB:
			rdValue = rs1Value - c
		case XOR:
			rdValue = rs1Value ^ c
		case OR:
			rdValue = rs1Value | c
		case AND:
			rdValue = rs1Value & c
		case SLL:
			rdValue = rs1Value << (c & 0x1F) // only the low 5 bits are considered in RV32
		case SRL:
			rdValue = rs1Value >> (c & 0x1F) // logical: fill with zeroes
		case SRA:
			rdValue = uint32(int32(rs1Value) >> (c & 0x1F)) // arithmetic: sign bit is extended
		case SLT:
			rdValue = b2u(int32(rs1Value) < int32(c))
		case SLTU:
			rdValue = b2u(rs1Value < c)
		}
		writeRegister(ins.A, rdValue)
	case MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU:
		rs1Value := loadRegister(ins.B)
		rs2Value := loadRegister(ins.C)
		writeRegister(ins.A, mulDiv(ins.Opcode, rs1Value, rs2Value))
	case LOADW, LOADHU, LOADBU:
		addr := loadRegister(ins.B) + ins.C
		var rdValue uint32
		switch ins.Opcode {
		case LOADW:
			rdValue = loadMem(addr, 4)
		case LOADHU:
			rdValue = loadMem(addr, 2)
		case LOADBU:
			rdValue = loadMem(addr, 1)
		}
		writeRegister(ins.A, rdValue)
	case STOREW, STOREH, STOREB:
		addr := loadRegister(ins.B) + ins.C
		value := loadRegister(ins.A)
		switch ins.Opcode {
		case STOREW:
			storeMem(addr, 4, value)
		case STOREH:
			storeMem(addr, 2, value)
		case STOREB:
			storeMem(addr, 1, value)
		}
	case SEXTB:
		writeRegister(ins.A, uint32(int32(int8(loadRegister(ins.A)))))
	case SEXTH:
		writeRegister(ins.A, uint32(int32(int16(loadRegister(ins.A)))))
	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		rs1Value := loadRegister(ins.A)
		rs2Value := loadRegister(ins.B)
		var branchHit bool
		switch ins.Opcode {
		case BEQ:
			branchHit = rs1Value == rs2Value
		case BNE:
			branchHit = rs1Value != rs2Value
		case BLT:
			branchHit = int32(rs1Value) < int32(rs2Value)
		case BGE:
			branchHit = int32(rs1Value) >= int32(rs2Value)
		case BLTU:
			branchHit = rs1Value < rs2Value
		case BGEU:
			branchHit = rs1Value >= rs2Value
		}
		if branchHit {
			next = ins.C
		}
	case JAL:
		writeRegister(ins.A, ins.C)
		next = ins.B
	case JALR:
		// rd may alias rs1: read before linking
		target := (loadRegister(ins.B) + ins.C) &^ 1 // least significant bit is set to 0
		next = jumpTo(target)
		writeRegister(ins.A, ins.F)
	case LOADI:
		writeRegister(ins.A, ins.C)
	case NOP:
	case TERMINATE:
		s.ExitCode = ins.C
		s.Exited = true
	case PHANTOM:
		phantom(ins)
	case HINTSTOREW:
		addr := loadRegister(ins.A)
		checkAligned(addr, 4)
		dat, ok := m.readHint(4)
		if !ok {
			revertWithCode(riscv.ErrHintStreamExhausted, errors.New("hint stream exhausted"))
		}
		m.state.Memory.SetUnaligned(addr, dat)
	case HINTBUFFER:
		addr := loadRegister(ins.A)
		words := loadRegister(ins.B)
		checkAligned(addr, 4)
		if uint64(words)*4 > math.MaxUint32 {
			revertWithCode(riscv.ErrHintStreamExhausted, fmt.Errorf("hint buffer of %d words is too large", words))
		}
		dat, ok := m.readHint(words * 4)
		if !ok {
			revertWithCode(riscv.ErrHintStreamExhausted, fmt.Errorf("hint stream exhausted, %d words requested", words))
		}
		if err := m.state.Memory.SetMemoryRange(addr, bytes.NewReader(dat)); err != nil {
			revertWithCode(riscv.ErrHintStreamExhausted, fmt.Errorf("failed to store hint buffer: %w", err))
		}
	case REVEAL:
		offset := loadRegister(ins.B) + ins.C
		checkAligned(offset, 4)
		if uint64(offset)+4 > MaxPublicValues {
			revertWithCode(riscv.ErrRevealOutOfBounds, fmt.Errorf("reveal at offset %d exceeds %d bytes of public values", offset, MaxPublicValues))
		}
		m.reveal(offset, loadRegister(ins.A))
	case ECALL:
		sysCall()
	default: // any other opcode results in an exit with error code
		revertWithCode(riscv.ErrUnknownOpCode, fmt.Errorf("unknown instruction opcode: %s", ins.Opcode))
	}

	s.PC = next
	s.Step++
	return nil
}

// -EBADF
const ebadf = ^uint32(9 - 1)

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func mulDiv(op Opcode, a, b uint32) uint32 {
	switch op {
	case MUL: // signed x signed, lower 32 bits
		return a * b
	case MULH: // upper bits of signed x signed
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case MULHSU: // upper bits of signed x unsigned
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case MULHU: // upper bits of unsigned x unsigned
		return uint32((uint64(a) * uint64(b)) >> 32)
	case DIV:
		switch {
		case b == 0:
			return math.MaxUint32
		case int32(a) == math.MinInt32 && int32(b) == -1: // overflow
			return a
		default:
			return uint32(int32(a) / int32(b))
		}
	case DIVU:
		if b == 0 {
			return math.MaxUint32
		}
		return a / b
	case REM:
		switch {
		case b == 0:
			return a
		case int32(a) == math.MinInt32 && int32(b) == -1: // overflow
			return 0
		default:
			return uint32(int32(a) % int32(b))
		}
	case REMU:
		if b == 0 {
			return a
		}
		return a % b
	}
	panic(fmt.Errorf("not a multiply/divide opcode: %s", op))
}
