package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/optimism/op-service/ioutil"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
	"github.com/ethereum-optimism/rvexe/rvgo/program"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

var SignatureFilePerm = os.FileMode(0o644)

type Options struct {
	// MaxSteps aborts execution with a fault after this many steps. 0 means no limit.
	MaxSteps uint64
	// InfoEvery logs progress every n steps. 0 disables progress logs.
	InfoEvery uint64
	// Input vectors the guest can pull into its hint stream.
	Input [][]byte

	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
	// Symbol names the function containing a source address, for progress logs.
	Symbol func(pc uint32) string
}

// Run executes the program until it terminates. When both region and output are set, the
// signature region of the final memory is written to output. Nothing is written when
// execution does not end with exit code 0.
func Run(ctx context.Context, exe *vm.Executable, cfg config.Config, region *program.SignatureRegion, output string, opts Options) (*vm.VMState, error) {
	l := opts.Logger
	if l == nil {
		l = log.Root()
	}
	symbol := opts.Symbol
	if symbol == nil {
		symbol = func(uint32) string { return "" }
	}

	us, err := vm.NewInstrumentedState(exe, cfg, opts.Stdout, opts.Stderr, opts.Input)
	if err != nil {
		return nil, err
	}
	state := us.State()

	start := time.Now()
	for !state.Exited {
		if state.Step%100 == 0 { // don't do the ctx err check (includes lock) too often
			if err := ctx.Err(); err != nil {
				return state, err
			}
		}
		if opts.MaxSteps != 0 && state.Step >= opts.MaxSteps {
			return state, fmt.Errorf("%w: step limit %d reached at source pc %08x", vm.ErrExecutionFault, opts.MaxSteps, us.SourcePC())
		}
		if opts.InfoEvery != 0 && state.Step%opts.InfoEvery == 0 {
			delta := time.Since(start)
			l.Info("processing",
				"step", state.Step,
				"pc", state.PC,
				"source", HexU32(us.SourcePC()),
				"ips", float64(state.Step)/(float64(delta)/float64(time.Second)),
				"pages", state.Memory.PageCount(),
				"mem", state.Memory.Usage(),
				"name", symbol(us.SourcePC()),
			)
		}
		if err := us.Step(); err != nil {
			return state, err
		}
	}

	l.Info("program exited",
		"step", state.Step,
		"exit", state.ExitCode,
		"duration", time.Since(start),
		"mem", state.Memory.Usage(),
		"memRoot", state.Memory.MerkleRoot(),
		"stateHash", state.StateHash(),
	)
	if pv := us.PublicValues(); len(pv) > 0 {
		l.Info("public values", "data", hexutil.Bytes(pv))
	}
	if state.ExitCode != 0 {
		return state, fmt.Errorf("%w: program exited with code %d", vm.ErrExecutionFault, state.ExitCode)
	}

	if region == nil || output == "" {
		l.Info("no signature output requested, skipping capture")
		return state, nil
	}
	if err := WriteSignature(state.Memory, *region, output); err != nil {
		return state, err
	}
	l.Info("wrote signature", "region", region, "size", humanize.IBytes(uint64(region.Size())), "out", output)
	return state, nil
}

// WriteSignature atomically writes the bytes of the region to path.
func WriteSignature(mem *vm.Memory, region program.SignatureRegion, path string) error {
	w, err := ioutil.NewAtomicWriter(path, SignatureFilePerm)
	if err != nil {
		return fmt.Errorf("%w: failed to create signature file %q: %w", vm.ErrIO, path, err)
	}
	if _, err := io.Copy(w, mem.ReadMemoryRange(region.Begin, uint64(region.Size()))); err != nil {
		_ = w.Abort()
		return fmt.Errorf("%w: failed to write signature file %q: %w", vm.ErrIO, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: failed to write signature file %q: %w", vm.ErrIO, path, err)
	}
	return nil
}

// HexU32 to lazy-format integer attributes for logging
type HexU32 uint32

func (v HexU32) String() string {
	return fmt.Sprintf("%08x", uint32(v))
}

func (v HexU32) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *HexU32) UnmarshalText(text []byte) error {
	x, err := strconv.ParseUint(string(text), 16, 32)
	if err != nil {
		return err
	}
	*v = HexU32(x)
	return nil
}
