package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kubiakdev/perms/internal/scenario"
	"github.com/kubiakdev/perms/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { errors.SetHandler(nil) })

	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const cameraScenario = `
name: camera
permissions: [CAMERA, CALL_PHONE]
rounds:
  - answers: {CAMERA: deny, CALL_PHONE: grant}
  - answers: {CAMERA: deny_forever}
`

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "perms "+Version)
}

func TestSimulate_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "camera.yaml", cameraScenario)

	out, _, err := execute(t, "simulate", "--scenario", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario camera")
	assert.Contains(t, out, "round 1: dialog (request 1410)")
	assert.Contains(t, out, "callbacks: OnAtLeastOneDenied, OnAtLeastOneForeverDenied")
}

func TestSimulate_YAMLWithConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "camera.yaml", cameraScenario)
	cfg := writeFile(t, dir, "perms.yaml", "request:\n  base_code: 9\n")

	out, _, err := execute(t, "simulate", "--config", cfg, "-s", path, "-o", "yaml")
	require.NoError(t, err)

	var report scenario.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Rounds, 2)
	assert.Equal(t, 9, report.Rounds[0].RequestCode)
	assert.Equal(t, 10, report.Rounds[1].RequestCode)
	assert.Equal(t, []string{"CAMERA"}, report.Rounds[1].ForeverDenied)
}

func TestSimulate_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "ok.yaml", cameraScenario)
	bad := writeFile(t, dir, "bad.yaml", "permissions: [a]\nrounds:\n  - answers: {a: maybe}\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing flag", []string{"simulate"}},
		{"missing file", []string{"simulate", "-s", filepath.Join(dir, "nope.yaml")}},
		{"invalid scenario", []string{"simulate", "-s", bad}},
		{"unknown format", []string{"simulate", "-s", good, "-o", "xml"}},
		{"invalid log level", []string{"simulate", "-s", good, "--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSimulate_DebugLogsGoToStderr(t *testing.T) {
	path := writeFile(t, t.TempDir(), "camera.yaml", cameraScenario)

	_, stderr, err := execute(t, "simulate", "-s", path, "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"message":"permission request issued"`)
	assert.Contains(t, stderr, `"scenario":"camera"`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "all granted",
			args: []string{"--grant", "CAMERA=granted"},
			want: []string{"result: all accepted", "accepted: CAMERA", "denied: -"},
		},
		{
			name: "denied with rationale shown",
			args: []string{"-g", "CAMERA=granted", "-g", "PHONE=denied"},
			want: []string{"result: at least one denied", "denied: PHONE", "forever denied: -"},
		},
		{
			name: "denied forever",
			args: []string{"-g", "PHONE=denied", "-g", "SMS=denied", "-r", "PHONE=false", "-r", "SMS=true"},
			want: []string{"denied: PHONE, SMS", "forever denied: PHONE"},
		},
		{
			name: "empty",
			args: nil,
			want: []string{"result: all accepted", "accepted: -"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"classify"}, tt.args...)...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestClassify_InvalidInput(t *testing.T) {
	for _, args := range [][]string{
		{"classify", "-g", "CAMERA"},
		{"classify", "-g", "CAMERA=maybe"},
		{"classify", "-g", "=granted"},
		{"classify", "-g", "CAMERA=denied", "-r", "CAMERA=perhaps"},
	} {
		_, _, err := execute(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "perms.yaml", "request:\n  skip_granted: false\nerrors:\n  verbose: true\n")

	out, _, err := execute(t, "config", "show", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "skip_granted: false")
	assert.Contains(t, out, "verbose: true")
	assert.Contains(t, out, "base_code: 1410")

	out, _, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "skip_granted: true")
	assert.Contains(t, out, "timeout: 30s")
}
