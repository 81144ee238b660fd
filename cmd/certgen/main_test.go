package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/aerissecure/certgen/certgentest"
	"github.com/aerissecure/certgen/config"
	"github.com/aerissecure/certgen/roster"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	generateFlags = struct {
		template  string
		font      string
		out       string
		naming    string
		policy    string
		noArchive bool
		noFolders bool
		identity  string
	}{}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger(config.LoggingConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	tpl, font := certgentest.Assets(t, dir)
	rosterPath := certgentest.WriteFile(t, dir, "results.xlsx", certgentest.Students(t,
		[2]string{"Alice Smith", "Qualified"},
		[2]string{"Bob Lee", "Not Qualified"},
	))
	out := filepath.Join(dir, "out")
	statsDir := filepath.Join(dir, "stats")
	t.Setenv("CERTGEN_STATS_DIR", statsDir)

	stdout, err := execute(t, "generate", rosterPath,
		"--config", filepath.Join(dir, "none.yaml"),
		"--env-file", filepath.Join(dir, "none.env"),
		"--template", tpl, "--font", font, "--out", out, "--identity", "tester")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "Certificates generated for 2 of 2 students (1 qualified, 1 not qualified).")

	assert.FileExists(t, filepath.Join(out, "Qualified", "Alice Smith.pdf"))
	assert.FileExists(t, filepath.Join(out, "Not_Qualified", "Bob Lee.pdf"))
	assert.FileExists(t, filepath.Join(out, "certificates.zip"))

	stdout, err = execute(t, "stats", "--config", filepath.Join(dir, "none.yaml"), "--env-file", filepath.Join(dir, "none.env"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Issued:        2")
	assert.Contains(t, stdout, "tester: 2")
}

func TestGenerateCommandMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	_, font := certgentest.Assets(t, dir)
	rosterPath := certgentest.WriteFile(t, dir, "results.xlsx", certgentest.Students(t, [2]string{"Alice Smith", "Qualified"}))
	t.Setenv("CERTGEN_STATS_DIR", filepath.Join(dir, "stats"))

	_, err := execute(t, "generate", rosterPath,
		"--config", filepath.Join(dir, "none.yaml"),
		"--env-file", filepath.Join(dir, "none.env"),
		"--template", filepath.Join(dir, "missing.pdf"), "--font", font, "--out", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
	assert.NoDirExists(t, filepath.Join(dir, "out"))
	assert.NoFileExists(t, filepath.Join(dir, "stats", "counters.json"))
}

func TestRosterTemplateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.xlsx")
	_, err := execute(t, "roster-template", path, "--config", filepath.Join(dir, "none.yaml"), "--env-file", filepath.Join(dir, "none.env"))
	require.NoError(t, err)

	records, err := roster.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInitConfigCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certgen.yaml")
	args := []string{"init-config", "--config", path, "--env-file", filepath.Join(dir, "none.env")}

	_, err := execute(t, args...)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "font_name: DancingScript")

	_, err = execute(t, args...)
	assert.Error(t, err, "refuses to overwrite")
}
