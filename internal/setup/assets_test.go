package setup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGeneratedAssets(t *testing.T, dir string) {
	t.Helper()
	for _, rel := range []string{translationsFile, extensionStub} {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		mustWriteFile(t, path, "{}\n")
	}
}

func TestAssetBuildRunsInstallAndCompiles(t *testing.T) {
	rec := overrideExec(t)

	dir := t.TempDir()
	writeGeneratedAssets(t, dir)

	b := newTestBootstrapper(t, dir)
	if err := b.runAssetBuild(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runAssetBuild returned error: %v", err)
	}

	calls := rec.allCalls()
	install := callIndex(calls, "yarn install --pure-lockfile")
	css := callIndex(calls, "build:css")
	webpack := callIndex(calls, "webpack-development")

	if install == -1 || css == -1 || webpack == -1 {
		t.Fatalf("missing asset commands in %v", calls)
	}
	if !(install < css && css < webpack) {
		t.Fatalf("wrong ordering: install=%d css=%d webpack=%d", install, css, webpack)
	}
	if callIndex(calls, "i18n:generate_js") != -1 {
		t.Fatalf("present translations must not be regenerated: %v", calls)
	}
}

func TestAssetBuildRegeneratesMissingTranslations(t *testing.T) {
	rec := overrideExec(t)

	dir := t.TempDir()

	b := newTestBootstrapper(t, dir)
	if err := b.runAssetBuild(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runAssetBuild returned error: %v", err)
	}

	if callIndex(rec.allCalls(), "i18n:generate_js") == -1 {
		t.Fatalf("missing translations should trigger i18n:generate_js: %v", rec.allCalls())
	}

	stub := filepath.Join(dir, extensionStub)
	data, err := os.ReadFile(stub)
	if err != nil {
		t.Fatalf("extension stub not written: %v", err)
	}
	if !strings.Contains(string(data), "export default []") {
		t.Fatalf("stub content = %q", data)
	}
}

func TestAssetBuildContinuesPastRegenerationFailure(t *testing.T) {
	rec := overrideExec(t)
	rec.failRun("i18n:generate_js", errCanned)

	dir := t.TempDir()

	b := newTestBootstrapper(t, dir)
	if err := b.runAssetBuild(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("regeneration failure must not abort the stage: %v", err)
	}

	calls := rec.allCalls()
	if callIndex(calls, "build:css") == -1 || callIndex(calls, "webpack-development") == -1 {
		t.Fatalf("compilation skipped after regeneration failure: %v", calls)
	}
}

func TestAssetBuildDryRunWritesNoStub(t *testing.T) {
	rec := overrideExec(t)

	dir := t.TempDir()

	b := newTestBootstrapper(t, dir)
	b.opts.dryRun = true
	if err := b.runAssetBuild(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runAssetBuild returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, extensionStub)); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote %s: %v", extensionStub, err)
	}
	if calls := rec.allCalls(); len(calls) != 0 {
		t.Fatalf("dry run executed commands: %v", calls)
	}
}

func TestAssetBuildCompilationFailureIsFatal(t *testing.T) {
	rec := overrideExec(t)
	rec.failRun("build:css", errCanned)

	dir := t.TempDir()
	writeGeneratedAssets(t, dir)

	b := newTestBootstrapper(t, dir)
	err := b.runAssetBuild(context.Background(), &stageContext{})
	if err == nil {
		t.Fatal("expected stylesheet compilation failure to propagate")
	}
	if !strings.Contains(err.Error(), "stylesheets") {
		t.Fatalf("unexpected error: %v", err)
	}
	if callIndex(rec.allCalls(), "webpack-development") != -1 {
		t.Fatalf("webpack ran after a fatal css failure: %v", rec.allCalls())
	}
}
