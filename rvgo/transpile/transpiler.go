package transpile

import (
	"fmt"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
	"github.com/ethereum-optimism/rvexe/rvgo/program"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// Transpiler turns a decoded program image into an executable of the target machine.
type Transpiler struct {
	extensions []Extension
}

// New builds a transpiler with the rule sets of the enabled extensions, in the order
// RV32I, RV32M, RV32IO.
func New(cfg config.Config) (*Transpiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var exts []Extension
	for _, ext := range cfg.Extensions() {
		switch ext {
		case config.RV32I:
			exts = append(exts, RV32I{})
		case config.RV32M:
			exts = append(exts, RV32M{})
		case config.IO:
			exts = append(exts, RV32IO{})
		}
	}
	return NewWithExtensions(exts...)
}

// NewWithExtensions builds a transpiler from explicit rule sets. No two rule sets may claim
// the same source encoding.
func NewWithExtensions(exts ...Extension) (*Transpiler, error) {
	if err := checkDisjoint(exts); err != nil {
		return nil, err
	}
	return &Transpiler{extensions: exts}, nil
}

func (t *Transpiler) Extensions() []Extension {
	return t.extensions
}

func (t *Transpiler) claimant(in Instr) Extension {
	for _, ext := range t.extensions {
		for _, c := range ext.Claims() {
			if c.Matches(in) {
				return ext
			}
		}
	}
	return nil
}

// Translate translates a single source instruction. Static jump targets stay source addresses.
func (t *Transpiler) Translate(in Instr) ([]vm.Instruction, error) {
	ext := t.claimant(in)
	if ext == nil {
		return nil, unsupported(in, "no enabled extension claims opcode 0x%02x funct3 %d", in.Opcode(), in.Funct3())
	}
	out, err := ext.Translate(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ext.Name(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty translation of %s", ext.Name(), in)
	}
	return out, nil
}

// Transpile translates every code word of the image, in address order.
func (t *Transpiler) Transpile(img *program.Image) (*vm.Executable, error) {
	exe := &vm.Executable{
		Instructions: make([]vm.Instruction, 0, len(img.Code)),
		PCMap:        make([]vm.Block, 0, len(img.Code)),
		Entry:        img.Entry,
		Memory:       make(map[uint32]uint32, len(img.Memory)),
	}
	for _, w := range img.Code {
		seq, err := t.Translate(Instr{PC: w.Addr, Word: w.Value})
		if err != nil {
			return nil, err
		}
		exe.PCMap = append(exe.PCMap, vm.Block{PC: w.Addr, Index: uint32(len(exe.Instructions))})
		exe.Instructions = append(exe.Instructions, seq...)
	}

	// the layout is final: rewrite static targets from source addresses to instruction indices
	for i := range exe.Instructions {
		ins := &exe.Instructions[i]
		if !ins.Opcode.HasStaticTarget() {
			continue
		}
		idx, ok := exe.Lookup(ins.Target())
		if !ok {
			return nil, fmt.Errorf("%w: %s at %08x jumps to %08x, which is not a translated instruction",
				ErrInvalidJumpTarget, ins.Opcode, ins.G, ins.Target())
		}
		ins.SetTarget(idx)
	}

	for addr, v := range img.Memory {
		exe.Memory[addr] = v
	}
	return exe, nil
}
