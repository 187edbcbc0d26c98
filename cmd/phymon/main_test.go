package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--config", "", "--backend", "sim"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDumpSim(t *testing.T) {
	out, err := run(t, "dump")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 33)
	assert.Contains(t, lines[1], "0x00")
	assert.Contains(t, lines[1], "BMCR")
	assert.Contains(t, lines[0x10+1], "PHYSTS")
}

func TestScanSim(t *testing.T) {
	out, err := run(t, "scan", "--phy-addr", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "addr=5 ")
	assert.Contains(t, out, "dp83826=true")
	assert.Contains(t, out, "modes=100M-F,100M-H,10M-F,10M-H")
}

func TestStatusSim(t *testing.T) {
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "link up 100M-F\n", out)
}

func TestMonitorSim(t *testing.T) {
	defer goleak.VerifyNone(t)
	out, err := run(t, "monitor", "--duration", "300ms")
	require.NoError(t, err)
	assert.Contains(t, out, "link up 100Mbps full-duplex")
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "dump")
	require.ErrorContains(t, err, "invalid configuration")
}
