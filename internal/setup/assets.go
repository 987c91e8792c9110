package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// Compiled JS expects a translations bundle even before i18n:generate_js
	// has ever run; webpack expects the plugin extension stub even with no
	// plugins installed. Both are regenerated here when missing.
	translationsFile = "public/javascripts/translations/en.json"
	extensionStub    = "ui/shared/bundles/extensions.ts"
)

const extensionStubContent = "// Generated fallback. Plugin bundles register themselves here.\nexport default []\n"

// runAssetBuild installs JS dependencies and compiles the stylesheet and
// script bundles. Missing generated artifacts are repaired first on a
// best-effort basis: compilation is still attempted when only the non-critical
// generators fail, and the stage then reports partial success.
func (b *bootstrapper) runAssetBuild(ctx context.Context, _ *stageContext) error {
	if err := b.composeRun(ctx, webService, "yarn", "install", "--pure-lockfile"); err != nil {
		return fmt.Errorf("yarn install: %w", err)
	}

	var regenFailures []string

	if !b.fileExists(translationsFile) {
		fmt.Printf("Missing %s; generating default translations.\n", translationsFile)
		if err := b.composeRun(ctx, webService, "bundle", "exec", "rake", "i18n:generate_js"); err != nil {
			b.debugf("i18n:generate_js: %v", err)
			regenFailures = append(regenFailures, translationsFile)
		}
	}

	if !b.fileExists(extensionStub) {
		if b.opts.dryRun {
			fmt.Printf("dry-run: write %s\n", extensionStub)
		} else {
			fmt.Printf("Missing %s; writing an empty stub.\n", extensionStub)
			if err := b.writeExtensionStub(); err != nil {
				b.debugf("write extension stub: %v", err)
				regenFailures = append(regenFailures, extensionStub)
			}
		}
	}

	if err := b.composeRun(ctx, webService, "yarn", "run", "build:css"); err != nil {
		return fmt.Errorf("compile stylesheets: %w", err)
	}
	if err := b.composeRun(ctx, webService, "yarn", "run", "webpack-development"); err != nil {
		return fmt.Errorf("compile script bundles: %w", err)
	}

	if len(regenFailures) > 0 {
		fmt.Printf("Assets compiled, but these generated files could not be repaired: %v\n", regenFailures)
	}
	return nil
}

func (b *bootstrapper) fileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(b.cfg.callerDir, rel))
	return err == nil
}

func (b *bootstrapper) writeExtensionStub() error {
	path := filepath.Join(b.cfg.callerDir, extensionStub)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(extensionStubContent), 0o644)
}
