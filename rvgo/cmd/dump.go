package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/ioutil"
	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/ethereum-optimism/rvexe/rvgo/driver"
	"github.com/ethereum-optimism/rvexe/rvgo/transpile"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

type DumpInstruction struct {
	vm.Instruction
	Mnemonic string `json:"mnemonic"`
	// Source is the disassembled instruction word the instruction was translated from.
	Source string `json:"source"`
}

type DumpOutput struct {
	Entry        driver.HexU32     `json:"entry"`
	Instructions []DumpInstruction `json:"instructions"`
	PCMap        []vm.Block        `json:"pcMap"`
	MemoryWords  int               `json:"memoryWords"`
	MemoryPages  int               `json:"memoryPages"`
	MemoryUsage  string            `json:"memoryUsage"`
	MemoryRoot   string            `json:"memoryRoot"`
}

func NewDumpOutput(exe *vm.Executable) (*DumpOutput, error) {
	state, err := vm.NewVMState(exe)
	if err != nil {
		return nil, err
	}
	out := &DumpOutput{
		Entry:        driver.HexU32(exe.Entry),
		Instructions: make([]DumpInstruction, len(exe.Instructions)),
		PCMap:        exe.PCMap,
		MemoryWords:  len(exe.Memory),
		MemoryPages:  state.Memory.PageCount(),
		MemoryUsage:  humanize.IBytes(uint64(state.Memory.PageCount()) * vm.PageSize),
		MemoryRoot:   state.Memory.MerkleRoot().Hex(),
	}
	for i, ins := range exe.Instructions {
		out.Instructions[i] = DumpInstruction{
			Instruction: ins,
			Mnemonic:    ins.Opcode.String(),
			Source:      transpile.Disassemble(exe.Memory[ins.G]),
		}
	}
	return out, nil
}

func Dump(ctx *cli.Context) error {
	input := ctx.Path(DumpInputFlag.Name)
	output := ctx.Path(DumpOutputFlag.Name)
	exe, err := vm.LoadExecutable(input)
	if err != nil {
		return err
	}
	dump, err := NewDumpOutput(exe)
	if err != nil {
		return fmt.Errorf("invalid executable %q: %w", input, err)
	}
	if err := jsonutil.WriteJSON(dump, ioutil.ToStdOutOrFileOrNoop(output, vm.OutFilePerm)); err != nil {
		return fmt.Errorf("%w: failed to write dump output: %w", vm.ErrIO, err)
	}
	return nil
}

var DumpCommand = &cli.Command{
	Name:        "dump",
	Usage:       "Render a .vmexe executable as JSON",
	Description: "Render a .vmexe executable as JSON, with each instruction annotated with the source instruction it was translated from.",
	Action:      Dump,
	Flags: []cli.Flag{
		DumpInputFlag,
		DumpOutputFlag,
	},
}
