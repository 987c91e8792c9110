package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// gemLockFiles is the static set of lock files that bundler must be able to
// rewrite during dependency installation. Discovery is deliberately not
// attempted; the set matches what the images know about.
var gemLockFiles = []string{
	"Gemfile.lock",
	"Gemfile.rails72.lock",
	"gems/plugins/Gemfile.lock",
}

// runDependencyInstall installs backend gems inside the web container. Lock
// files are made writable first, then checked for consistency against the
// Gemfile; a failed check means the lock set is conflicting and gets cleaned
// and recreated before installation.
func (b *bootstrapper) runDependencyInstall(ctx context.Context, _ *stageContext) error {
	if err := b.ensureWritable(ctx, "gem lock files", gemLockFiles); err != nil {
		return err
	}

	if !b.gemLocksConsistent(ctx) {
		fmt.Println("Gem lock files are out of sync with the Gemfile; recreating them.")
		if err := b.cleanGemLocks(ctx); err != nil {
			return err
		}
	}

	return b.composeRun(ctx, webService, "bundle", "install")
}

// gemLocksConsistent runs bundle check as a best-effort consistency probe.
// Any failure, including a transient one, is treated as "conflicting"; the
// worst case is an unnecessary lock rebuild, which bundle install repairs.
func (b *bootstrapper) gemLocksConsistent(ctx context.Context) bool {
	_, err := b.composeRunOutput(ctx, webService, "bundle", "check")
	return err == nil
}

// cleanGemLocks removes the conflicting lock set, recreates empty
// placeholders so the container user can regenerate them, and relaxes their
// permissions.
func (b *bootstrapper) cleanGemLocks(ctx context.Context) error {
	for _, lock := range gemLockFiles {
		path := filepath.Join(b.cfg.callerDir, lock)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", lock, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("recreate %s: %w", lock, err)
		}
		if err := os.WriteFile(path, nil, 0o666); err != nil {
			return fmt.Errorf("recreate %s: %w", lock, err)
		}
	}

	b.remediatePaths(ctx, gemLockFiles)
	return nil
}
