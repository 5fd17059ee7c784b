package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/testlog"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
	"github.com/ethereum-optimism/rvexe/rvgo/driver"
	"github.com/ethereum-optimism/rvexe/rvgo/program"
	"github.com/ethereum-optimism/rvexe/rvgo/rvtest"
	"github.com/ethereum-optimism/rvexe/rvgo/transpile"
	"github.com/ethereum-optimism/rvexe/rvgo/vm"
)

// complianceELF mimics a compliance test: it fills the signature region with 0x11..0x20.
func complianceELF(base uint32, symbols ...rvtest.Symbol) *rvtest.ELF {
	return &rvtest.ELF{
		TextAddr: base,
		Text: []uint32{
			rvtest.AUIPC(rvtest.T0, 0x1000),
			rvtest.ADDI(rvtest.T2, rvtest.T0, 64),
			rvtest.LI(rvtest.T1, 0x11),
			rvtest.SW(rvtest.T1, rvtest.T0, 0),
			rvtest.ADDI(rvtest.T0, rvtest.T0, 4),
			rvtest.ADDI(rvtest.T1, rvtest.T1, 1),
			rvtest.BNE(rvtest.T0, rvtest.T2, -12),
			rvtest.Terminate(0),
		},
		DataAddr: base + 0x1000,
		Bss:      0x40,
		Symbols:  symbols,
	}
}

func signatureSymbols(base uint32) []rvtest.Symbol {
	return []rvtest.Symbol{
		{Name: "_start", Value: base},
		{Name: program.BeginSignatureSymbol, Value: base + 0x1000},
		{Name: program.EndSignatureSymbol, Value: base + 0x1040},
	}
}

func testOptions(t *testing.T) driver.Options {
	return driver.Options{InfoEvery: 50, Logger: testlog.Logger(t, log.LevelInfo)}
}

func TestRunELF(t *testing.T) {
	dir := t.TempDir()
	elfPath := complianceELF(program.RunBase, signatureSymbols(program.RunBase)...).WriteFile(t, dir, "test.elf")

	sigA := filepath.Join(dir, "a.sig")
	sigB := filepath.Join(dir, "b.sig")
	state, err := RunELF(context.Background(), elfPath, sigA, config.Default(), testOptions(t))
	require.NoError(t, err)
	require.True(t, state.Exited)
	_, err = RunELF(context.Background(), elfPath, sigB, config.Default(), testOptions(t))
	require.NoError(t, err)

	a, err := os.ReadFile(sigA)
	require.NoError(t, err)
	b, err := os.ReadFile(sigB)
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.Equal(t, a, b)
	for i := 0; i < 16; i++ {
		require.Equal(t, uint32(0x11+i), binary.LittleEndian.Uint32(a[i*4:]))
	}
}

func TestRunELFWithoutSignatureOutput(t *testing.T) {
	dir := t.TempDir()
	elfPath := complianceELF(program.RunBase, signatureSymbols(program.RunBase)...).WriteFile(t, dir, "test.elf")
	_, err := RunELF(context.Background(), elfPath, "", config.Default(), testOptions(t))
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunELFMissingSignature(t *testing.T) {
	dir := t.TempDir()
	elfPath := complianceELF(program.RunBase,
		rvtest.Symbol{Name: program.BeginSignatureSymbol, Value: program.RunBase + 0x1000},
	).WriteFile(t, dir, "test.elf")
	sig := filepath.Join(dir, "out.sig")

	_, err := RunELF(context.Background(), elfPath, sig, config.Default(), testOptions(t))
	require.ErrorIs(t, err, program.ErrMissingSignatureSymbols)
	require.NoFileExists(t, sig)
}

func TestRunELFErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := RunELF(context.Background(), filepath.Join(t.TempDir(), "nope.elf"), "", config.Default(), testOptions(t))
		require.ErrorIs(t, err, vm.ErrIO)
	})
	t.Run("linked below the run base", func(t *testing.T) {
		dir := t.TempDir()
		elfPath := complianceELF(program.TranspileBase, signatureSymbols(program.TranspileBase)...).WriteFile(t, dir, "test.elf")
		_, err := RunELF(context.Background(), elfPath, filepath.Join(dir, "out.sig"), config.Default(), testOptions(t))
		require.Error(t, err)
		require.NoFileExists(t, filepath.Join(dir, "out.sig"))
	})
	t.Run("extension disabled", func(t *testing.T) {
		dir := t.TempDir()
		e := complianceELF(program.RunBase, signatureSymbols(program.RunBase)...)
		e.Text = append([]uint32{rvtest.MUL(rvtest.A0, rvtest.A0, rvtest.A0)}, e.Text...)
		elfPath := e.WriteFile(t, dir, "test.elf")
		_, err := RunELF(context.Background(), elfPath, "", config.Config{RV32I: true, IO: true}, testOptions(t))
		require.ErrorIs(t, err, transpile.ErrUnsupportedInstruction)
	})
}

func TestTranspileELF(t *testing.T) {
	dir := t.TempDir()
	elfPath := complianceELF(program.TranspileBase).WriteFile(t, dir, "prog.elf")

	out, err := TranspileELF(elfPath, config.Default(), testlog.Logger(t, log.LevelInfo))
	require.NoError(t, err)
	require.Equal(t, elfPath+".vmexe", out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"prog.elf", "prog.elf.vmexe"}, names)

	raw, err := os.ReadFile(elfPath)
	require.NoError(t, err)
	expected, err := transpileELF(raw, program.TranspileBase, config.Default())
	require.NoError(t, err)
	loaded, err := vm.LoadExecutable(out)
	require.NoError(t, err)
	require.Equal(t, expected, loaded)
	require.Equal(t, uint32(0), loaded.Entry)
}

func TestTranspileELFUnsupported(t *testing.T) {
	dir := t.TempDir()
	e := complianceELF(program.TranspileBase)
	e.Text[2] = 0x30529073 // csrrw
	elfPath := e.WriteFile(t, dir, "prog.elf")

	_, err := TranspileELF(elfPath, config.Default(), testlog.Logger(t, log.LevelInfo))
	require.ErrorIs(t, err, transpile.ErrUnsupportedInstruction)
	var unsupportedErr *transpile.UnsupportedInstructionError
	require.ErrorAs(t, err, &unsupportedErr)
	require.Equal(t, uint32(8), unsupportedErr.PC)
	require.NoFileExists(t, elfPath+".vmexe")
}

func testApp() (*cli.App, *bytes.Buffer) {
	var errOut bytes.Buffer
	app := cli.NewApp()
	app.Name = "rvexe"
	app.ErrWriter = &errOut
	app.Commands = []*cli.Command{RunCommand, TranspileCommand, DumpCommand}
	return app, &errOut
}

func TestCommands(t *testing.T) {
	t.Run("run usage", func(t *testing.T) {
		app, errOut := testApp()
		err := app.Run([]string{"rvexe", "run"})
		require.ErrorContains(t, err, "got 0 arguments")
		require.Contains(t, errOut.String(), "Usage: rvexe run <elf-path> [signature-output-path]")
	})
	t.Run("transpile usage", func(t *testing.T) {
		app, errOut := testApp()
		err := app.Run([]string{"rvexe", "transpile", "a.elf", "b.elf"})
		require.ErrorContains(t, err, "got 2 arguments")
		require.Contains(t, errOut.String(), "Usage: rvexe transpile <elf-path>")
	})
	t.Run("unknown extension", func(t *testing.T) {
		app, _ := testApp()
		err := app.Run([]string{"rvexe", "transpile", "--extensions", "rv32i,rv64a", "a.elf"})
		require.ErrorIs(t, err, config.ErrInvalidConfig)
	})
	t.Run("transpile and dump", func(t *testing.T) {
		dir := t.TempDir()
		elfPath := complianceELF(program.TranspileBase).WriteFile(t, dir, "prog.elf")
		app, _ := testApp()
		require.NoError(t, app.Run([]string{"rvexe", "transpile", elfPath}))

		dumpPath := filepath.Join(dir, "dump.json")
		app, _ = testApp()
		require.NoError(t, app.Run([]string{"rvexe", "dump", "--input", elfPath + ".vmexe", "--output", dumpPath}))

		var dump DumpOutput
		dat, err := os.ReadFile(dumpPath)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(dat, &dump))
		require.Len(t, dump.Instructions, 8)
		require.Equal(t, "LOADI", dump.Instructions[0].Mnemonic)
		require.Equal(t, driver.HexU32(0), dump.Entry)
	})
}

func TestNewDumpOutput(t *testing.T) {
	raw := complianceELF(program.TranspileBase).Bytes()
	exe, err := transpileELF(raw, program.TranspileBase, config.Default())
	require.NoError(t, err)

	dump, err := NewDumpOutput(exe)
	require.NoError(t, err)
	require.Len(t, dump.Instructions, len(exe.Instructions))
	require.Equal(t, len(exe.Memory), dump.MemoryWords)
	require.Equal(t, 1, dump.MemoryPages)
	require.Equal(t, "BNE", dump.Instructions[6].Mnemonic)
	require.Equal(t, uint32(3), dump.Instructions[6].C, "branch target is an instruction index")
	require.Equal(t, transpile.Disassemble(rvtest.Terminate(0)), dump.Instructions[7].Source)

	exe.Entry = 0x1000
	_, err = NewDumpOutput(exe)
	require.ErrorIs(t, err, vm.ErrInvalidExecutable)
}

func TestLoggingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &LoggingWriter{Name: "program std-out", Log: Logger(&buf, log.LevelInfo)}

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Contains(t, buf.String(), "program std-out")
	require.Contains(t, buf.String(), "hello")

	buf.Reset()
	_, err = w.Write([]byte{0x00, 0xff})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "0x00ff")
}
