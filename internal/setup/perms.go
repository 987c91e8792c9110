package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// remediationResult reports whether a best-effort remediation ran and whether
// it worked. Callers decide what to do next from a fresh probe, not from this
// result alone.
type remediationResult struct {
	attempted bool
	succeeded bool
}

// Seam for tests; unix.Access is not meaningfully fakeable otherwise.
var accessWritable = func(path string) error {
	return unix.Access(path, unix.W_OK)
}

// probeWritable reports whether every path can be written by the current
// user. Existing paths are checked directly; missing ones degrade to a
// sentinel-file check in the closest existing parent directory.
func probeWritable(paths []string) bool {
	for _, path := range paths {
		if !pathWritable(path) {
			return false
		}
	}
	return true
}

func pathWritable(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return accessWritable(path) == nil
	}
	return dirAllowsCreate(existingParent(filepath.Dir(path)))
}

func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func dirAllowsCreate(dir string) bool {
	sentinel, err := os.CreateTemp(dir, ".devsetup-probe-*")
	if err != nil {
		return false
	}
	name := sentinel.Name()
	_ = sentinel.Close()
	_ = os.Remove(name)
	return true
}

// remediatePaths escalates through the web container, which runs privileged,
// to create missing files and relax their permissions. Failures are captured
// in the result rather than aborting the run; a follow-up probe decides
// whether the underlying operation can proceed.
func (b *bootstrapper) remediatePaths(ctx context.Context, paths []string) remediationResult {
	if len(paths) == 0 {
		return remediationResult{}
	}

	fmt.Println("Fixing file permissions inside the web container; this may take a moment.")

	res := remediationResult{attempted: true, succeeded: true}
	for _, path := range paths {
		script := fmt.Sprintf("mkdir -p %s && touch %s && chmod 666 %s",
			quoteShellArg(filepath.Dir(path)), quoteShellArg(path), quoteShellArg(path))
		if err := b.composeRunAsRoot(ctx, webService, "sh", "-c", script); err != nil {
			b.debugf("remediate %s: %v", path, err)
			res.succeeded = false
		}
	}
	return res
}

// ensureWritable probes the paths and, only when the probe fails, runs the
// escalated remediation and probes again. A second failure aborts with a
// descriptive message instead of looping.
func (b *bootstrapper) ensureWritable(ctx context.Context, what string, paths []string) error {
	host := hostPaths(b.cfg.callerDir, paths)
	if probeWritable(host) {
		return nil
	}

	fmt.Printf("Cannot write %s; attempting to fix permissions.\n", what)
	b.remediatePaths(ctx, paths)

	if probeWritable(host) {
		return nil
	}
	return fmt.Errorf("%s still not writable after fixing permissions; check ownership of %s", what, paths[0])
}

// hostPaths maps repo-relative paths onto the host checkout; remediation uses
// the relative form because the web container's workdir is the checkout root.
func hostPaths(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(base, p)
	}
	return out
}
