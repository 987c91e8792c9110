package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// runPreflight confirms the working directory is a Canvas checkout and lays
// down the compose-file state the rest of the run depends on. A wrong
// directory is fatal with no remediation.
func (b *bootstrapper) runPreflight(ctx context.Context, sc *stageContext) error {
	for _, marker := range []string{markerScript, markerComposeFile} {
		if _, err := os.Stat(filepath.Join(b.cfg.callerDir, marker)); err != nil {
			return fmt.Errorf("%s not found; run devsetup from the root of a Canvas checkout", marker)
		}
	}

	if err := b.ensureDotenv(); err != nil {
		return err
	}
	return b.ensureComposeOverride(ctx, sc)
}
