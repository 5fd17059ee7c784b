package transpile

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// Claim is a set of source encodings an extension is responsible for.
// A nil Funct3 or Funct7 set matches any value of that field.
type Claim struct {
	Opcode uint32
	Funct3 []uint32
	Funct7 []uint32
}

func (c Claim) Matches(in Instr) bool {
	if in.Opcode() != c.Opcode {
		return false
	}
	if c.Funct3 != nil && !slices.Contains(c.Funct3, in.Funct3()) {
		return false
	}
	if c.Funct7 != nil && !slices.Contains(c.Funct7, in.Funct7()) {
		return false
	}
	return true
}

func intersects(a, b []uint32) bool {
	if a == nil || b == nil {
		return true
	}
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

func (c Claim) Overlaps(o Claim) bool {
	return c.Opcode == o.Opcode && intersects(c.Funct3, o.Funct3) && intersects(c.Funct7, o.Funct7)
}

func (c Claim) String() string {
	f3, f7 := "*", "*"
	if c.Funct3 != nil {
		f3 = fmt.Sprint(c.Funct3)
	}
	if c.Funct7 != nil {
		f7 = fmt.Sprint(c.Funct7)
	}
	return fmt.Sprintf("opcode=0x%02x funct3=%s funct7=%s", c.Opcode, f3, f7)
}

// Extension translates the source encodings it claims into target instructions.
//
// Static jump targets of the returned branches and JALs are source addresses, the
// Transpiler rewrites them to instruction indices once the program layout is known.
type Extension interface {
	Name() string
	Claims() []Claim
	Translate(in Instr) ([]vm.Instruction, error)
}

// checkDisjoint verifies no source encoding is claimed by more than one extension.
func checkDisjoint(exts []Extension) error {
	var result *multierror.Error
	for i, a := range exts {
		for _, b := range exts[i+1:] {
			for _, ca := range a.Claims() {
				for _, cb := range b.Claims() {
					if ca.Overlaps(cb) {
						result = multierror.Append(result, fmt.Errorf("%w: %s (%s) and %s (%s)",
							ErrOverlappingClaims, a.Name(), ca, b.Name(), cb))
					}
				}
			}
		}
	}
	return result.ErrorOrNil()
}

// helpers shared by the extensions

func alu(op vm.Opcode, in Instr, c uint32, cSpace uint32) vm.Instruction {
	return vm.Instruction{Opcode: op, A: in.Rd(), B: in.Rs1(), C: c, D: vm.AsRegister, E: cSpace, G: in.PC}
}

func nop(in Instr) vm.Instruction {
	return vm.Instruction{Opcode: vm.NOP, G: in.PC}
}

func one(ins vm.Instruction) ([]vm.Instruction, error) {
	return []vm.Instruction{ins}, nil
}
