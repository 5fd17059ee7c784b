package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type VMState struct {
	Memory *Memory `json:"memory"`

	// PC is the index of the next instruction to execute.
	PC uint32 `json:"pc"`

	ExitCode uint32 `json:"exit"`
	Exited   bool   `json:"exited"`

	Step uint64 `json:"step"`

	Registers [32]uint32 `json:"registers"`
}

// NewVMState prepares the initial machine state of an executable: static memory loaded,
// registers zeroed, PC at the entry point.
func NewVMState(exe *Executable) (*VMState, error) {
	entry, ok := exe.Lookup(exe.Entry)
	if !ok {
		return nil, fmt.Errorf("%w: entry %08x is not a translated instruction", ErrInvalidExecutable, exe.Entry)
	}
	out := &VMState{
		Memory: NewMemory(),
		PC:     entry,
	}
	for addr, v := range exe.Memory {
		out.Memory.SetWord(addr, v)
	}
	return out, nil
}

func (state *VMState) EncodeWitness() []byte {
	out := make([]byte, 0, 32+4+4+1+8+32*4)
	memRoot := state.Memory.MerkleRoot()
	out = append(out, memRoot[:]...)
	out = binary.BigEndian.AppendUint32(out, state.PC)
	out = binary.BigEndian.AppendUint32(out, state.ExitCode)
	if state.Exited {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint64(out, state.Step)
	for _, r := range state.Registers {
		out = binary.BigEndian.AppendUint32(out, r)
	}
	return out
}

// StateHash commits to the full machine state.
func (state *VMState) StateHash() common.Hash {
	return crypto.Keccak256Hash(state.EncodeWitness())
}
