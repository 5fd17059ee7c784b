package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
	"github.com/ethereum-optimism/rvexe/rvgo/driver"
	"github.com/ethereum-optimism/rvexe/rvgo/program"
	"github.com/ethereum-optimism/rvexe/rvgo/transpile"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// RunELF resolves the signature region of a compliance-test ELF, transpiles the program and
// runs it. The signature is written to sigPath when it is not empty.
// The signature symbols are resolved before anything else: without them nothing is executed.
func RunELF(ctx context.Context, elfPath string, sigPath string, cfg config.Config, opts driver.Options) (*vm.VMState, error) {
	l := opts.Logger
	if l == nil {
		l = log.Root()
		opts.Logger = l
	}
	l.Info("reading ELF", "path", elfPath)
	raw, err := os.ReadFile(elfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read ELF file %q: %w", vm.ErrIO, elfPath, err)
	}

	region, err := program.ResolveSignature(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signature region of %q: %w", elfPath, err)
	}
	l.Info("found signature region", "region", region, "size", humanize.IBytes(uint64(region.Size())))
	region, err = region.Rebase(program.RunBase)
	if err != nil {
		return nil, err
	}

	exe, err := transpileELF(raw, program.RunBase, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to transpile %q: %w", elfPath, err)
	}
	l.Info("transpiled", "instructions", len(exe.Instructions), "memoryWords", len(exe.Memory), "extensions", cfg)

	if opts.Symbol == nil {
		if syms, err := program.Symbols(raw, program.RunBase); err != nil {
			l.Warn("no symbols for progress logs", "err", err)
		} else {
			opts.Symbol = syms.LookupName
		}
	}

	if sigPath == "" {
		l.Info("running without signature extraction")
	} else {
		l.Info("running with signature extraction", "out", sigPath)
	}
	return driver.Run(ctx, exe, cfg, &region, sigPath, opts)
}

func transpileELF(raw []byte, base uint32, cfg config.Config) (*vm.Executable, error) {
	img, err := program.Decode(raw, base)
	if err != nil {
		return nil, err
	}
	t, err := transpile.New(cfg)
	if err != nil {
		return nil, err
	}
	return t.Transpile(img)
}

func Run(ctx *cli.Context) error {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return usageError(ctx, "expected <elf-path> [signature-output-path], got %d arguments", ctx.NArg())
	}
	if ctx.Bool(RunPProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}
	cfg, err := config.Parse(ctx.String(ExtensionsFlag.Name))
	if err != nil {
		return err
	}

	var input [][]byte
	for _, path := range ctx.StringSlice(RunInputFlag.Name) {
		dat, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: failed to read input %q: %w", vm.ErrIO, path, err)
		}
		input = append(input, dat)
	}

	l := Logger(os.Stderr, log.LevelInfo)
	_, err = RunELF(ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1), cfg, driver.Options{
		MaxSteps:  ctx.Uint64(RunMaxStepsFlag.Name),
		InfoEvery: ctx.Uint64(RunInfoEveryFlag.Name),
		Input:     input,
		Stdout:    &LoggingWriter{Name: "program std-out", Log: l},
		Stderr:    &LoggingWriter{Name: "program std-err", Log: l},
		Logger:    l,
	})
	return err
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Transpile and execute a compliance-test ELF",
	Description: "Resolve the signature region, transpile the ELF linked at 0x80000000, and run it. If a signature output path is given, the signature region of the final memory is written to it.",
	ArgsUsage:   "<elf-path> [signature-output-path]",
	Action:      Run,
	Flags: []cli.Flag{
		ExtensionsFlag,
		RunMaxStepsFlag,
		RunInfoEveryFlag,
		RunInputFlag,
		RunPProfCPUFlag,
	},
}
