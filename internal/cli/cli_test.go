package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/app"
	"hostwatch/internal/config"
	"hostwatch/internal/storage"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

func withTestApp(t *testing.T, configFile string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUDO_USER", "")
	t.Setenv("SUDO_UID", "")

	a, err := app.New(app.Options{
		DBPath:     filepath.Join(t.TempDir(), "hostwatch.db"),
		ConfigFile: configFile,
	})
	require.NoError(t, err)

	prev := appInstance
	appInstance = a
	t.Cleanup(func() {
		a.Close()
		appInstance = prev
	})
}

func newRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	addTargetFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestExpandSpecs(t *testing.T) {
	var errOut bytes.Buffer
	targets, err := expandSpecs(target.FromStrings([]string{"10.0.0.0/30", "bogus spec", "10.0.0.1"}), 0, &errOut)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, target.Keys(targets))
	assert.Contains(t, errOut.String(), "bogus spec")
}

func TestExpandSpecs_NoTargets(t *testing.T) {
	var errOut bytes.Buffer
	_, err := expandSpecs(target.FromStrings([]string{"not/valid/at/all"}), 0, &errOut)
	assert.ErrorIs(t, err, pkgerrors.ErrNoTargets)

	_, err = expandSpecs(nil, 0, &errOut)
	assert.ErrorIs(t, err, pkgerrors.ErrNoTargets)
}

func TestReadSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte("# lab\n10.0.0.1\n\nexample.com\n"), 0644))

	specs, err := readSpecFile(path, nil)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "10.0.0.1", specs[0].Text)
	assert.Equal(t, "example.com", specs[1].Text)

	specs, err = readSpecFile("-", strings.NewReader("192.168.1.1\n"))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "192.168.1.1", specs[0].Text)

	_, err = readSpecFile(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestResolveConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: 4s\nworkers: 7\nstrategy: tcp\n"), 0644))
	withTestApp(t, path)

	ctx := context.Background()
	require.NoError(t, appInstance.Storage.SetSetting(ctx, config.KeyWorkers, "3"))
	require.NoError(t, appInstance.Storage.SetSetting(ctx, config.KeyTCPPort, "8080"))

	cmd := newRunCommand(t, "--workers", "11", "--no-resolve")
	cfg, err := resolveConfig(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Interval) // file
	assert.Equal(t, 11, cfg.Workers)             // flag over file over stored
	assert.Equal(t, "tcp", cfg.Strategy)         // file
	assert.Equal(t, 8080, cfg.TCPPort)           // stored
	assert.False(t, cfg.ResolveNames)            // flag
	assert.Equal(t, time.Second, cfg.Timeout)    // default
}

func TestResolveConfig_Invalid(t *testing.T) {
	withTestApp(t, "")

	cmd := newRunCommand(t, "--interval", "1s", "--timeout", "1s")
	_, err := resolveConfig(context.Background(), cmd)
	assert.ErrorIs(t, err, pkgerrors.ErrTimeoutNotBelowInterval)

	cmd = newRunCommand(t, "--privileged", "maybe")
	_, err = resolveConfig(context.Background(), cmd)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidSetting)
}

func TestCollectSpecs(t *testing.T) {
	withTestApp(t, "")
	ctx := context.Background()

	_, err := storage.SaveTargetList(ctx, appInstance.Storage, "lab", "", []string{"10.1.0.1", "10.1.0.2"})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Targets = []string{"172.16.0.1"}

	// Config file targets only apply when nothing else names targets.
	specs, err := collectSpecs(ctx, newRunCommand(t), nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, []target.Spec{{Text: "172.16.0.1"}}, specs)

	specs, err = collectSpecs(ctx, newRunCommand(t, "--list", "lab"), []string{"10.0.0.1"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []target.Spec{{Text: "10.0.0.1"}, {Text: "10.1.0.1"}, {Text: "10.1.0.2"}}, specs)

	_, err = collectSpecs(ctx, newRunCommand(t, "--list", "missing"), nil, cfg)
	assert.ErrorIs(t, err, pkgerrors.ErrListNotFound)
}

func TestNewSession(t *testing.T) {
	cfg := config.Defaults()
	cfg.Strategy = "tcp"
	targets, _ := (&target.Expander{}).Expand(target.FromStrings([]string{"127.0.0.1"}))

	sess, err := newSession(cfg, targets, false)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, 1, sess.store.Len())
	assert.False(t, sess.scheduler.IsRunning())

	cfg.Strategy = "carrier-pigeon"
	_, err = newSession(cfg, targets, false)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	targets, errs := target.NewExpander().Expand(target.FromStrings([]string{"10.0.0.1", "::1", "example.com"}))
	require.Empty(t, errs)
	require.Len(t, targets, 3)

	assert.Equal(t, "ipv4", kindOf(targets[0]))
	assert.Equal(t, "ipv6", kindOf(targets[1]))
	assert.Equal(t, "hostname", kindOf(targets[2]))
}
