package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestSetupConsoleCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "debug", Console: &buf})
	t.Cleanup(func() { Setup(Options{}) })

	WithComponent("selection").Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"selection"`)
	assert.Contains(t, out, `"message":"hello"`)
}

func TestSetupFileLogging(t *testing.T) {
	dir := t.TempDir()
	Setup(Options{FileLogging: true, Dir: dir})
	t.Cleanup(func() { Setup(Options{}) })

	Get().Info().Msg("to file")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}

func TestRotateShiftsArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)
	require.NoError(t, os.WriteFile(path, []byte("current"), 0o644))
	require.NoError(t, os.WriteFile(archiveName(path, 1), []byte("one"), 0o644))

	rotate(path)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(archiveName(path, 1))
	require.NoError(t, err)
	assert.Equal(t, "current", string(got))
	got, err = os.ReadFile(archiveName(path, 2))
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
}
