// Package system discovers the installed Zeek distribution: the script
// search prefixes used for load-pattern normalization and the system script
// files that are always visible. Discovery runs once at startup and is not
// on the completion hot path.
package system

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Prefixes returns the script search prefixes: those configured explicitly
// plus whatever `zeek-config` reports. A missing zeek install is not an
// error; the server degrades to workspace-local resolution.
func Prefixes(ctx context.Context, cfg Config, logger *zap.Logger) []string {
	prefixes := append([]string(nil), cfg.Prefixes...)

	bin := cfg.ZeekConfig
	if bin == "" {
		bin = "zeek-config"
	}
	out, err := exec.CommandContext(ctx, bin, "--script_dir").Output()
	if err != nil {
		logger.Info("zeek-config not available", zap.String("bin", bin), zap.Error(err))
		return prefixes
	}
	for _, dir := range strings.Split(strings.TrimSpace(string(out)), ":") {
		if dir != "" {
			prefixes = append(prefixes, dir)
		}
	}
	return prefixes
}

// ScriptFiles enumerates every *.zeek file under the given prefixes.
func ScriptFiles(prefixes []string) ([]string, error) {
	var files []string
	for _, prefix := range prefixes {
		err := filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtrees reduce coverage, they do not fail
				// discovery.
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".zeek") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking prefix %s: %w", prefix, err)
		}
	}
	return files, nil
}
