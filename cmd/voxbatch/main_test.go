package main

import (
	"errors"
	"testing"

	"github.com/fmueller/voxbatch/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"voxbatch\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts at most 1 arg(s), received 2")))
	require.False(t, shouldPrintUsageHint(errors.New("load model: download model \"small\": context deadline exceeded")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "voxbatch", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "voxbatch", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "voxbatch convert", helpHintTarget(root, []string{"convert"}))
	require.Equal(t, "voxbatch convert", helpHintTarget(root, []string{"convert", "--bogus"}))
	require.Equal(t, "voxbatch scan", helpHintTarget(root, []string{"scan", "a", "b"}))
}
