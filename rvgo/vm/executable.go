package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum-optimism/optimism/op-service/serialize"
	"github.com/ethereum-optimism/optimism/op-service/ioutil"
)

var ErrInvalidExecutable = errors.New("invalid executable")

var OutFilePerm = os.FileMode(0o644)

const (
	executableVersion = uint32(1)
	// magic, version, entry
	executableHeaderSize = 4 + 4 + 4
	instructionSize      = 2 + 7*4
	checksumSize         = 8
)

var executableMagic = [4]byte{'R', 'V', 'X', 'E'}

// Serialize writes the executable in a simple binary format which can be read again using Deserialize.
// Numbers are big endian, repeating items are prefixed with their count:
//
//	magic             [4]byte "RVXE"
//	version           uint32
//	entry             uint32
//	len(Instructions) uint32
//	For each instruction: opcode uint16, A..G uint32
//	len(PCMap)        uint32
//	For each block: pc uint32, index uint32
//	len(Memory)       uint32
//	For each word, ordered by address: addr uint32, value uint32
//	checksum          uint64 xxhash64 of everything above
func (e *Executable) Serialize(out io.Writer) error {
	var buf bytes.Buffer
	buf.Write(executableMagic[:])
	buf.Write(binary.BigEndian.AppendUint32(nil, executableVersion))
	buf.Write(binary.BigEndian.AppendUint32(nil, e.Entry))

	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(e.Instructions))))
	for _, ins := range e.Instructions {
		if err := binary.Write(&buf, binary.BigEndian, ins); err != nil {
			return err
		}
	}

	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(e.PCMap))))
	for _, b := range e.PCMap {
		if err := binary.Write(&buf, binary.BigEndian, b); err != nil {
			return err
		}
	}

	addrs := make([]uint32, 0, len(e.Memory))
	for addr := range e.Memory {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(addrs))))
	for _, addr := range addrs {
		buf.Write(binary.BigEndian.AppendUint32(nil, addr))
		buf.Write(binary.BigEndian.AppendUint32(nil, e.Memory[addr]))
	}

	buf.Write(binary.BigEndian.AppendUint64(nil, xxhash.Sum64(buf.Bytes())))
	_, err := out.Write(buf.Bytes())
	return err
}

func (e *Executable) Deserialize(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if len(data) < executableHeaderSize+checksumSize {
		return fmt.Errorf("%w: truncated, only %d bytes", ErrInvalidExecutable, len(data))
	}
	body, sum := data[:len(data)-checksumSize], binary.BigEndian.Uint64(data[len(data)-checksumSize:])
	if got := xxhash.Sum64(body); got != sum {
		return fmt.Errorf("%w: checksum mismatch, expected %016x but got %016x", ErrInvalidExecutable, sum, got)
	}
	if !bytes.Equal(body[:4], executableMagic[:]) {
		return fmt.Errorf("%w: bad magic %x", ErrInvalidExecutable, body[:4])
	}
	if v := binary.BigEndian.Uint32(body[4:8]); v != executableVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidExecutable, v)
	}
	e.Entry = binary.BigEndian.Uint32(body[8:12])
	r := bytes.NewReader(body[executableHeaderSize:])

	count := func(itemSize int) (uint32, error) {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidExecutable, err)
		}
		if uint64(n)*uint64(itemSize) > uint64(r.Len()) {
			return 0, fmt.Errorf("%w: %d items of %d bytes exceed remaining %d bytes", ErrInvalidExecutable, n, itemSize, r.Len())
		}
		return n, nil
	}

	n, err := count(instructionSize)
	if err != nil {
		return err
	}
	e.Instructions = make([]Instruction, n)
	if err := binary.Read(r, binary.BigEndian, e.Instructions); err != nil {
		return fmt.Errorf("%w: instructions: %w", ErrInvalidExecutable, err)
	}

	n, err = count(8)
	if err != nil {
		return err
	}
	e.PCMap = make([]Block, n)
	if err := binary.Read(r, binary.BigEndian, e.PCMap); err != nil {
		return fmt.Errorf("%w: pc map: %w", ErrInvalidExecutable, err)
	}

	n, err = count(8)
	if err != nil {
		return err
	}
	e.Memory = make(map[uint32]uint32, n)
	for i := uint32(0); i < n; i++ {
		var w [2]uint32
		if err := binary.Read(r, binary.BigEndian, &w); err != nil {
			return fmt.Errorf("%w: memory: %w", ErrInvalidExecutable, err)
		}
		if _, ok := e.Memory[w[0]]; ok {
			return fmt.Errorf("%w: duplicate memory word at %08x", ErrInvalidExecutable, w[0])
		}
		e.Memory[w[0]] = w[1]
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidExecutable, r.Len())
	}
	return e.Validate()
}

// Validate checks the structural invariants the VM relies on.
func (e *Executable) Validate() error {
	for i := range e.PCMap {
		if i > 0 && e.PCMap[i-1].PC >= e.PCMap[i].PC {
			return fmt.Errorf("%w: pc map not sorted at entry %d", ErrInvalidExecutable, i)
		}
		if e.PCMap[i].Index >= uint32(len(e.Instructions)) {
			return fmt.Errorf("%w: pc %08x maps to index %d beyond %d instructions", ErrInvalidExecutable,
				e.PCMap[i].PC, e.PCMap[i].Index, len(e.Instructions))
		}
	}
	for i, ins := range e.Instructions {
		if !ins.Opcode.Valid() {
			return fmt.Errorf("%w: unknown opcode %s at index %d", ErrInvalidExecutable, ins.Opcode, i)
		}
		if ins.Opcode.HasStaticTarget() && ins.Target() >= uint32(len(e.Instructions)) {
			return fmt.Errorf("%w: %s at index %d targets index %d beyond %d instructions", ErrInvalidExecutable,
				ins.Opcode, i, ins.Target(), len(e.Instructions))
		}
	}
	for addr := range e.Memory {
		if addr%4 != 0 {
			return fmt.Errorf("%w: memory word at unaligned address %08x", ErrInvalidExecutable, addr)
		}
	}
	if _, ok := e.Lookup(e.Entry); !ok {
		return fmt.Errorf("%w: entry %08x is not a translated instruction", ErrInvalidExecutable, e.Entry)
	}
	return nil
}

// SaveExecutable writes the executable atomically: the file only appears once fully written.
func SaveExecutable(exe *Executable, path string) error {
	if err := serialize.WriteSerializedBinary(exe, ioutil.ToAtomicFile(path, OutFilePerm)); err != nil {
		return fmt.Errorf("%w: failed to write executable %q: %w", ErrIO, path, err)
	}
	return nil
}

func LoadExecutable(path string) (*Executable, error) {
	exe, err := serialize.LoadSerializedBinary[Executable](path)
	if errors.Is(err, ErrInvalidExecutable) {
		return nil, fmt.Errorf("invalid executable %q: %w", path, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to read executable %q: %w", ErrIO, path, err)
	}
	return exe, nil
}
