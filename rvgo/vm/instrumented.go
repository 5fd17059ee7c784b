package vm

import (
	"encoding/binary"
	"io"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
)

// MaxPublicValues is the capacity of the public-values buffer a guest can REVEAL into.
const MaxPublicValues = 1024

// InstrumentedState runs an executable against a VMState, and connects the guest to the
// outside world: standard output streams, input vectors and revealed public values.
type InstrumentedState struct {
	state *VMState
	exe   *Executable
	cfg   config.Config

	stdOut io.Writer
	stdErr io.Writer

	// input vectors not yet moved into the hint stream
	input [][]byte
	// bytes the guest can still consume with hint instructions
	hintStream []byte

	publicValues []byte
}

func NewInstrumentedState(exe *Executable, cfg config.Config, stdOut, stdErr io.Writer, input [][]byte) (*InstrumentedState, error) {
	state, err := NewVMState(exe)
	if err != nil {
		return nil, err
	}
	if stdOut == nil {
		stdOut = io.Discard
	}
	if stdErr == nil {
		stdErr = io.Discard
	}
	return &InstrumentedState{
		state:  state,
		exe:    exe,
		cfg:    cfg,
		stdOut: stdOut,
		stdErr: stdErr,
		input:  input,
	}, nil
}

func (m *InstrumentedState) State() *VMState {
	return m.state
}

// SourcePC returns the source address of the instruction the VM is about to execute.
func (m *InstrumentedState) SourcePC() uint32 {
	if pc := m.state.PC; pc < uint32(len(m.exe.Instructions)) {
		return m.exe.Instructions[pc].G
	}
	return 0
}

func (m *InstrumentedState) PublicValues() []byte {
	return m.publicValues
}

// nextInput moves the next input vector into the hint stream, prefixed with its length and
// padded to a multiple of 4 bytes.
func (m *InstrumentedState) nextInput() bool {
	if len(m.input) == 0 {
		return false
	}
	v := m.input[0]
	m.input = m.input[1:]
	stream := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(v)+3), uint32(len(v)))
	stream = append(stream, v...)
	for len(stream)%4 != 0 {
		stream = append(stream, 0)
	}
	m.hintStream = stream
	return true
}

// readHint consumes n bytes of the hint stream.
func (m *InstrumentedState) readHint(n uint32) ([]byte, bool) {
	if uint64(len(m.hintStream)) < uint64(n) {
		return nil, false
	}
	out := m.hintStream[:n]
	m.hintStream = m.hintStream[n:]
	return out, true
}

func (m *InstrumentedState) reveal(offset uint32, v uint32) {
	end := uint64(offset) + 4
	if uint64(len(m.publicValues)) < end {
		m.publicValues = append(m.publicValues, make([]byte, end-uint64(len(m.publicValues)))...)
	}
	binary.LittleEndian.PutUint32(m.publicValues[offset:], v)
}
