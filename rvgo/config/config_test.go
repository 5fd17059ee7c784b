package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, []Extension{RV32I, RV32M, IO}, c.Extensions())
	require.Equal(t, "rv32i,rv32m,io", c.String())
}

func TestParse(t *testing.T) {
	t.Run("default string", func(t *testing.T) {
		c, err := Parse(Default().String())
		require.NoError(t, err)
		require.Equal(t, Default(), c)
	})
	t.Run("order and case insensitive", func(t *testing.T) {
		c, err := Parse(" IO, rv32i ")
		require.NoError(t, err)
		require.Equal(t, Config{RV32I: true, IO: true}, c)
		require.Equal(t, []Extension{RV32I, IO}, c.Extensions())
		require.False(t, c.Enabled(RV32M))
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := Parse("rv32i,rv64i,zicsr")
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.ErrorContains(t, err, "rv64i")
		require.ErrorContains(t, err, "zicsr")
	})
	t.Run("base required", func(t *testing.T) {
		_, err := Parse("rv32m,io")
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.ErrorContains(t, err, "rv32i is required")
		require.ErrorContains(t, err, "rv32m depends on rv32i")
	})
	t.Run("empty", func(t *testing.T) {
		_, err := Parse("")
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNew(t *testing.T) {
	c, err := New(Config{RV32I: true})
	require.NoError(t, err)
	require.Equal(t, "rv32i", c.String())

	_, err = New(Config{IO: true})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExtensionString(t *testing.T) {
	require.Equal(t, "rv32m", RV32M.String())
	require.Equal(t, "extension(7)", Extension(7).String())
	require.False(t, Default().Enabled(Extension(7)))
}
