package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPercentiles(t *testing.T) {
	p50, p99 := percentiles(nil)
	require.Zero(t, p50)
	require.Zero(t, p99)

	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[len(samples)-1-i] = time.Duration(i+1) * time.Millisecond
	}
	p50, p99 = percentiles(samples)
	require.Equal(t, 51*time.Millisecond, p50)
	require.Equal(t, 100*time.Millisecond, p99)
	// 输入不被排序修改
	require.Equal(t, 100*time.Millisecond, samples[0])
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "-o", "yaml"})
	err := rootCmd.Execute()
	require.Error(t, err)

	globalFlags.OutputFormat = "table"
}
