package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
	"github.com/ethereum-optimism/rvexe/rvgo/program"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

const ExecutableExt = ".vmexe"

// TranspileELF transpiles the ELF linked at program.TranspileBase and writes the executable
// next to it, returning the path of the written file.
func TranspileELF(elfPath string, cfg config.Config, l log.Logger) (string, error) {
	raw, err := os.ReadFile(elfPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read ELF file %q: %w", vm.ErrIO, elfPath, err)
	}
	exe, err := transpileELF(raw, program.TranspileBase, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to transpile %q: %w", elfPath, err)
	}
	out := elfPath + ExecutableExt
	if err := vm.SaveExecutable(exe, out); err != nil {
		return "", err
	}
	l.Info("wrote executable", "out", out, "instructions", len(exe.Instructions), "memoryWords", len(exe.Memory))
	return out, nil
}

func Transpile(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return usageError(ctx, "expected exactly one <elf-path>, got %d arguments", ctx.NArg())
	}
	cfg, err := config.Parse(ctx.String(ExtensionsFlag.Name))
	if err != nil {
		return err
	}
	_, err = TranspileELF(ctx.Args().First(), cfg, Logger(os.Stderr, log.LevelInfo))
	return err
}

var TranspileCommand = &cli.Command{
	Name:        "transpile",
	Usage:       "Transpile an ELF into a .vmexe executable",
	Description: "Transpile an ELF linked at 0x20000000 and write the executable to <elf-path>.vmexe. The file only appears once it is completely written.",
	ArgsUsage:   "<elf-path>",
	Action:      Transpile,
	Flags: []cli.Flag{
		ExtensionsFlag,
	},
}
