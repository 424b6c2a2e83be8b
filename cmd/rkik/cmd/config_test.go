/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aguacero7/rkik/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() { RootCmd.SetArgs(nil) })
	err := RootCmd.Execute()
	return out.String(), err
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDir, dir)

	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, config.FileName)+"\n", out)

	out, err = execute(t, "config", "list")
	require.NoError(t, err)
	require.Equal(t, "timeout = <unset>\nformat = <unset>\nipv6_only = <unset>\n", out)

	out, err = execute(t, "config", "set", "timeout", "2")
	require.NoError(t, err)
	require.Equal(t, "timeout = 2.000\n", out)

	_, err = execute(t, "config", "set", "format", "json")
	require.NoError(t, err)

	out, err = execute(t, "config", "get", "format")
	require.NoError(t, err)
	require.Equal(t, "json\n", out)

	_, err = execute(t, "config", "set", "format", "yaml")
	requireExitCode(t, 2, err)

	_, err = execute(t, "config", "clear", "format")
	require.NoError(t, err)
	out, err = execute(t, "config", "get", "format")
	require.NoError(t, err)
	require.Equal(t, "<unset>\n", out)

	raw, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	require.Contains(t, string(raw), "timeout = 2.0")
}

func TestPresetCommands(t *testing.T) {
	t.Setenv(config.EnvDir, t.TempDir())

	out, err := execute(t, "preset", "list")
	require.NoError(t, err)
	require.Equal(t, "(no presets)\n", out)

	out, err = execute(t, "preset", "add", "lab", "compare", "a.lab", "b.lab", "--json")
	require.NoError(t, err)
	require.Equal(t, "Preset 'lab' stored\n", out)

	out, err = execute(t, "preset", "show", "lab")
	require.NoError(t, err)
	require.Equal(t, "compare a.lab b.lab --json\n", out)

	out, err = execute(t, "preset", "list")
	require.NoError(t, err)
	require.Equal(t, "lab: compare a.lab b.lab --json\n", out)

	out, err = execute(t, "preset", "remove", "lab")
	require.NoError(t, err)
	require.Equal(t, "Removed preset 'lab'\n", out)

	_, err = execute(t, "preset", "remove", "lab")
	requireExitCode(t, 1, err)
	_, err = execute(t, "preset", "run", "lab")
	requireExitCode(t, 1, err)
	_, err = execute(t, "preset", "add", "lonely")
	requireExitCode(t, 2, err)
}

func TestCompareNeedsTwoTargets(t *testing.T) {
	_, err := execute(t, "compare", "time.example")
	require.Error(t, err)
	var buf bytes.Buffer
	require.Equal(t, 2, codeFor(&buf, err))
	require.Contains(t, buf.String(), "Error: ")
}

func TestCodeFor(t *testing.T) {
	var buf bytes.Buffer
	require.Equal(t, 0, codeFor(&buf, nil))
	require.Equal(t, 3, codeFor(&buf, &ExitError{Code: 3}))
	require.Empty(t, buf.String())
	require.Equal(t, 12, codeFor(&buf, &ExitError{Code: 12, Err: os.ErrPermission}))
	require.Contains(t, buf.String(), "permission denied")
}
