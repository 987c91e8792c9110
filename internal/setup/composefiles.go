package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ensureDotenv records the compose file list in the project .env so plain
// docker compose invocations pick up the override. An existing COMPOSE_FILE
// entry is preserved as-is; re-runs never duplicate it.
func (b *bootstrapper) ensureDotenv() error {
	path := filepath.Join(b.cfg.callerDir, dotenvFile)
	entry := fmt.Sprintf("COMPOSE_FILE=%s", composeFileListValue)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", dotenvFile, err)
		}
		if b.opts.dryRun {
			fmt.Printf("dry-run: write %s with %s\n", dotenvFile, entry)
			return nil
		}
		if writeErr := os.WriteFile(path, []byte(entry+"\n"), 0o644); writeErr != nil {
			return fmt.Errorf("write %s: %w", dotenvFile, writeErr)
		}
		fmt.Printf("Wrote %s with %s\n", dotenvFile, entry)
		return nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "COMPOSE_FILE=") {
			b.debugf("%s already declares COMPOSE_FILE; leaving it alone", dotenvFile)
			return nil
		}
	}

	if b.opts.dryRun {
		fmt.Printf("dry-run: append %s to %s\n", entry, dotenvFile)
		return nil
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("append to %s: %w", dotenvFile, err)
	}
	fmt.Printf("Added %s to %s\n", entry, dotenvFile)
	return nil
}

// ensureComposeOverride copies the example override into place on first run.
// When one already exists the operator chooses whether to replace it; the
// default, and the unattended behavior, is to keep the existing file.
func (b *bootstrapper) ensureComposeOverride(ctx context.Context, sc *stageContext) error {
	dest := filepath.Join(b.cfg.callerDir, composeOverrideFile)
	source := filepath.Join(b.cfg.callerDir, composeOverrideStub)

	if b.opts.dryRun {
		if _, err := os.Stat(dest); err == nil {
			b.debugf("dry-run: keeping existing %s", composeOverrideFile)
			return nil
		}
		fmt.Printf("dry-run: copy %s to %s\n", composeOverrideStub, composeOverrideFile)
		return nil
	}

	if _, err := os.Stat(dest); err == nil {
		if b.cfg.automation {
			b.debugf("keeping existing %s (automation)", composeOverrideFile)
			return nil
		}
		replace, err := b.prompter.Confirm(ctx,
			fmt.Sprintf("%s already exists. Replace it with the current example?", composeOverrideFile), false)
		if err != nil {
			return err
		}
		if !replace {
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", composeOverrideFile, err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read override example: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", composeOverrideFile, err)
	}
	sc.overrideCreated = true
	fmt.Printf("Copied %s to %s\n", composeOverrideStub, composeOverrideFile)
	return nil
}
