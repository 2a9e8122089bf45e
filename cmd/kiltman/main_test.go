package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/kiltman/pkg/config"
	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formsSource = "бару:0\tбар:imp:::\tбарамын:decl:present:First:Singular\n" +
	"қатар:0\tқатар::::\tқатарлар::::Plural\n"

// execute runs the command tree with args, feeding stdin, and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("NO_COLOR", "1")

	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, config.SaveConfig(config.DefaultConfig(), cfgPath))

	statsJSON, versionVerbose, debugMode, configReset = false, false, false, false
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func prepare(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "forms.csv")
	require.NoError(t, os.WriteFile(src, []byte(formsSource), 0o644))

	bin := filepath.Join(dir, "kiltman.bin")
	_, err := execute(t, "", "prepare", src, bin)
	require.NoError(t, err)
	require.FileExists(t, bin)
	return bin
}

func TestPrepareAndBatch(t *testing.T) {
	bin := prepare(t)

	out, err := execute(t, "барамын\nқатарлар\nжоқ\n", "batch", bin)
	require.NoError(t, err)
	assert.Equal(t, "барамын\tбару\nқатарлар\tқатар\nжоқ\t\n", out)
}

func TestPrepareRejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "", "prepare", "forms.csv", "out.json")
	assert.Error(t, err)
}

func TestConvertAndStats(t *testing.T) {
	bin := prepare(t)
	txt := strings.TrimSuffix(bin, ".bin") + ".txt"

	_, err := execute(t, "", "convert", bin, txt)
	require.NoError(t, err)
	require.FileExists(t, txt)

	out, err := execute(t, "", "stats", "--json", txt)
	require.NoError(t, err)
	var stats []trie.TableStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.NotEmpty(t, stats)
	assert.Equal(t, "runes", stats[0].Name)

	out, err = execute(t, "", "stats", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes")
	assert.Contains(t, out, "total")
}

func TestCLICommand(t *testing.T) {
	bin := prepare(t)

	out, err := execute(t, "бар\n", "cli", "--no-meta", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "'бар' has 1 analyses:")
	assert.Contains(t, out, "барамын")
}

func TestMissingTrie(t *testing.T) {
	_, err := execute(t, "", "batch", filepath.Join(t.TempDir(), "none.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "config.toml")
	assert.Contains(t, out, `addr = "127.0.0.1:8080"`)
	assert.Contains(t, out, `read_timeout = "10s"`)
}
