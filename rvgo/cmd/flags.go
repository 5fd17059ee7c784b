package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
)

const envVarPrefix = "RVEXE"

func prefixEnvVars(name string) []string {
	return []string{envVarPrefix + "_" + strings.ToUpper(name)}
}

var (
	ExtensionsFlag = &cli.StringFlag{
		Name:    "extensions",
		Usage:   "Comma separated instruction extensions the program may use. rv32i is required.",
		EnvVars: prefixEnvVars("EXTENSIONS"),
		Value:   config.Default().String(),
	}
	RunMaxStepsFlag = &cli.Uint64Flag{
		Name:    "max-steps",
		Usage:   "Abort execution after this many steps. 0 means no limit.",
		EnvVars: prefixEnvVars("MAX_STEPS"),
		Value:   0,
	}
	RunInfoEveryFlag = &cli.Uint64Flag{
		Name:    "info-every",
		Usage:   "Log progress every N steps. 0 disables progress logs.",
		EnvVars: prefixEnvVars("INFO_EVERY"),
		Value:   10_000_000,
	}
	RunInputFlag = &cli.StringSliceFlag{
		Name:      "input",
		Usage:     "File fed to the program as one input vector. May be repeated, vectors are consumed in order.",
		EnvVars:   prefixEnvVars("INPUT"),
		TakesFile: true,
	}
	RunPProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "enable pprof cpu profiling",
	}
	DumpInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "Path of the .vmexe file to dump.",
		TakesFile: true,
		Required:  true,
	}
	DumpOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "Path to write the JSON dump to. '-' for stdout, empty to only validate the input.",
		TakesFile: true,
		Value:     "-",
	}
)

// usageError prints the command usage to stderr and returns an error describing the misuse.
func usageError(ctx *cli.Context, format string, args ...any) error {
	w := ctx.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintf(w, "Usage: %s %s %s\n", ctx.App.Name, ctx.Command.Name, ctx.Command.ArgsUsage)
	return fmt.Errorf(format, args...)
}
