package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "zeek_config: /usr/local/bin/zeek-config\nprefixes:\n  - /opt/scripts\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/zeek-config", cfg.ZeekConfig)
	require.Equal(t, []string{"/opt/scripts"}, cfg.Prefixes)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefixes: {not a list"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestPrefixesWithoutZeekConfig(t *testing.T) {
	cfg := Config{
		ZeekConfig: filepath.Join(t.TempDir(), "no-such-zeek-config"),
		Prefixes:   []string{"/opt/scripts"},
	}
	got := Prefixes(context.Background(), cfg, zap.NewNop())
	require.Equal(t, []string{"/opt/scripts"}, got)
}

func TestScriptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base", "protocols"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "init-bare.zeek"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "protocols", "conn.zeek"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0o644))

	files, err := ScriptFiles([]string{dir})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "base", "init-bare.zeek"),
		filepath.Join(dir, "base", "protocols", "conn.zeek"),
	}, files)
}

func TestScriptFilesMissingPrefix(t *testing.T) {
	files, err := ScriptFiles([]string{filepath.Join(t.TempDir(), "gone")})
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestWatchReportsCreatedScripts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := Watch(ctx, []string{dir}, zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(dir, "new.zeek")
	require.NoError(t, os.WriteFile(path, []byte("module new;\n"), 0o644))
	// Non-script files are filtered out.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	select {
	case got := <-created:
		require.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no create event received")
	}

	cancel()
	for range created {
		// Drain until the watcher goroutine closes the channel.
	}
}

func TestWatchReportsScriptsInSubdirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "packages", "detect-thing", "scripts")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := Watch(ctx, []string{dir}, zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(nested, "main.zeek")
	require.NoError(t, os.WriteFile(path, []byte("module DetectThing;\n"), 0o644))

	select {
	case got := <-created:
		require.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no create event received for nested script")
	}

	cancel()
	for range created {
	}
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := Watch(ctx, []string{dir}, zap.NewNop())
	require.NoError(t, err)

	sub := filepath.Join(dir, "detect-later")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// The watch on a new directory is installed asynchronously, so keep
	// dropping scripts into it until one is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	n := 0
	for {
		select {
		case got := <-created:
			require.Equal(t, sub, filepath.Dir(got))
			cancel()
			for range created {
			}
			return
		case <-tick.C:
			name := filepath.Join(sub, fmt.Sprintf("attempt%d.zeek", n))
			n++
			require.NoError(t, os.WriteFile(name, []byte("module Later;\n"), 0o644))
		case <-deadline:
			t.Fatal("no create event received from new directory")
		}
	}
}
