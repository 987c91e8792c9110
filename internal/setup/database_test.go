package setup

import (
	"context"
	"strings"
	"testing"

	"github.com/fazzledev/canvas-lms/internal/configstore"
)

func callIndex(calls []string, needle string) int {
	for i, call := range calls {
		if strings.Contains(call, needle) {
			return i
		}
	}
	return -1
}

func TestDatabaseSetupCreatesMissingDatabase(t *testing.T) {
	rec := overrideExec(t)
	rec.failOutput("db:version", errCanned)

	b := newTestBootstrapper(t, t.TempDir())
	sc := &stageContext{}
	if err := b.runDatabaseSetup(context.Background(), sc); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	calls := rec.allCalls()
	postgres := callIndex(calls, "up -d postgres")
	create := callIndex(calls, "db:create")
	migrateDev := callIndex(calls, "RAILS_ENV=development")
	migrateTest := callIndex(calls, "RAILS_ENV=test")
	seed := callIndex(calls, "db:initial_setup")

	if postgres == -1 || create == -1 || migrateDev == -1 || migrateTest == -1 || seed == -1 {
		t.Fatalf("missing expected commands in %v", calls)
	}
	if !(postgres < create && create < migrateDev && migrateDev < migrateTest && migrateTest < seed) {
		t.Fatalf("wrong ordering: postgres=%d create=%d dev=%d test=%d seed=%d",
			postgres, create, migrateDev, migrateTest, seed)
	}
	if callIndex(calls, "db:drop") != -1 {
		t.Fatalf("fresh database must never be dropped: %v", calls)
	}
	if !sc.databaseCreated {
		t.Fatal("expected databaseCreated to be set")
	}
}

func TestDatabaseSetupMigratesExistingWithoutSeeding(t *testing.T) {
	rec := overrideExec(t)

	b := newTestBootstrapper(t, t.TempDir())
	b.prompter = &scriptedPrompter{choice: databaseChoice{action: actionMigrate}}

	sc := &stageContext{}
	if err := b.runDatabaseSetup(context.Background(), sc); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	calls := rec.allCalls()
	if callIndex(calls, "db:drop") != -1 {
		t.Fatalf("migrate choice must not drop: %v", calls)
	}
	if callIndex(calls, "db:create") != -1 {
		t.Fatalf("migrate choice must not create: %v", calls)
	}
	if callIndex(calls, "db:initial_setup") != -1 {
		t.Fatalf("existing database must not be reseeded: %v", calls)
	}
	if callIndex(calls, "RAILS_ENV=development") == -1 || callIndex(calls, "RAILS_ENV=test") == -1 {
		t.Fatalf("both environments must be migrated: %v", calls)
	}
}

func TestDatabaseSetupDropRecreatesAndSeeds(t *testing.T) {
	rec := overrideExec(t)

	b := newTestBootstrapper(t, t.TempDir())
	b.prompter = &scriptedPrompter{
		choice:        databaseChoice{action: actionDrop},
		confirmAnswer: true,
	}

	sc := &stageContext{}
	if err := b.runDatabaseSetup(context.Background(), sc); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	calls := rec.allCalls()
	drop := callIndex(calls, "db:drop")
	create := callIndex(calls, "db:create")
	migrateDev := callIndex(calls, "RAILS_ENV=development")
	seed := callIndex(calls, "db:initial_setup")

	if drop == -1 || create == -1 || seed == -1 {
		t.Fatalf("missing expected commands in %v", calls)
	}
	if !(drop < create && create < migrateDev && migrateDev < seed) {
		t.Fatalf("wrong ordering: drop=%d create=%d dev=%d seed=%d", drop, create, migrateDev, seed)
	}
	if !sc.databaseDropped || !sc.databaseCreated {
		t.Fatalf("stage context = %+v, want dropped and created", sc)
	}
}

func TestDatabaseSetupDeclinedConfirmationFallsBackToMigrate(t *testing.T) {
	rec := overrideExec(t)

	b := newTestBootstrapper(t, t.TempDir())
	p := &scriptedPrompter{
		choice:        databaseChoice{action: actionDrop},
		confirmAnswer: false,
	}
	b.prompter = p

	if err := b.runDatabaseSetup(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	if p.confirmCalls != 1 {
		t.Fatalf("confirm prompts = %d, want 1", p.confirmCalls)
	}
	calls := rec.allCalls()
	if callIndex(calls, "db:drop") != -1 {
		t.Fatalf("declined confirmation must not drop: %v", calls)
	}
	if callIndex(calls, "RAILS_ENV=development") == -1 {
		t.Fatalf("declined confirmation should still migrate: %v", calls)
	}
}

func TestDatabaseSetupAutomationDropsWithoutPrompting(t *testing.T) {
	rec := overrideExec(t)

	b := newTestBootstrapper(t, t.TempDir())
	b.cfg.automation = true
	p := &scriptedPrompter{}
	b.prompter = p

	if err := b.runDatabaseSetup(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	if p.chooseCalls != 0 || p.confirmCalls != 0 {
		t.Fatalf("automation asked questions: choose=%d confirm=%d", p.chooseCalls, p.confirmCalls)
	}
	calls := rec.allCalls()
	if callIndex(calls, "db:drop") == -1 {
		t.Fatalf("automation default is drop, got %v", calls)
	}
}

func TestDatabaseSetupUsesRememberedAnswer(t *testing.T) {
	rec := overrideExec(t)

	dir := t.TempDir()
	b := newTestBootstrapper(t, dir)
	if err := b.store.SetProjectDatabaseAction(dir, "migrate"); err != nil {
		t.Fatalf("seed remembered answer: %v", err)
	}
	p := &scriptedPrompter{choice: databaseChoice{action: actionDrop}, confirmAnswer: true}
	b.prompter = p

	if err := b.runDatabaseSetup(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	if p.chooseCalls != 0 {
		t.Fatalf("remembered answer must suppress the wizard, asked %d times", p.chooseCalls)
	}
	if callIndex(rec.allCalls(), "db:drop") != -1 {
		t.Fatalf("remembered migrate answer must not drop: %v", rec.allCalls())
	}
}

func TestDatabaseSetupRemembersChoiceForProject(t *testing.T) {
	overrideExec(t)

	lockEnv(t)
	setEnv(t, "CANVAS_SETUP_HOME", t.TempDir())

	dir := t.TempDir()
	b := newTestBootstrapper(t, dir)
	b.prompter = &scriptedPrompter{
		choice: databaseChoice{action: actionMigrate, remember: true},
	}

	if err := b.runDatabaseSetup(context.Background(), &stageContext{}); err != nil {
		t.Fatalf("runDatabaseSetup returned error: %v", err)
	}

	if action, scope := b.store.EffectiveDatabaseAction(dir); action != "migrate" || scope != configstore.ScopeProject {
		t.Fatalf("remembered action = %q (scope %s), want project-scoped migrate", action, scope)
	}
}
