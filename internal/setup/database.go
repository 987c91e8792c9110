package setup

import (
	"context"
	"fmt"

	"github.com/fazzledev/canvas-lms/internal/configstore"
)

// runDatabaseSetup ensures the development and test databases exist and are
// migrated. An existing database triggers the drop-or-migrate decision; drop
// is one-way and destroys all data, so interactive runs gate it behind an
// explicit confirmation.
func (b *bootstrapper) runDatabaseSetup(ctx context.Context, sc *stageContext) error {
	// The presence probe needs postgres answering even when the start stage
	// was skipped.
	if err := b.compose(ctx, "up", "-d", postgresService); err != nil {
		return fmt.Errorf("start %s: %w", postgresService, err)
	}

	present, err := b.databasePresent(ctx)
	if err != nil {
		return err
	}

	if !present {
		fmt.Println("No database found; creating one.")
		if err := b.composeRun(ctx, webService, "bundle", "exec", "rake", "db:create"); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		sc.databaseCreated = true
	} else {
		action, err := b.resolveDatabaseAction(ctx)
		if err != nil {
			return err
		}
		if action == actionDrop {
			fmt.Println("Dropping and recreating the database. All existing data is gone after this.")
			if err := b.composeRun(ctx, webService, "bundle", "exec", "rake", "db:drop"); err != nil {
				return fmt.Errorf("drop database: %w", err)
			}
			if err := b.composeRun(ctx, webService, "bundle", "exec", "rake", "db:create"); err != nil {
				return fmt.Errorf("recreate database: %w", err)
			}
			sc.databaseDropped = true
			sc.databaseCreated = true
		}
	}

	for _, env := range []string{"development", "test"} {
		if err := b.composeRunWithEnv(ctx, webService, []string{"RAILS_ENV=" + env},
			"bundle", "exec", "rake", "db:migrate"); err != nil {
			return fmt.Errorf("migrate %s database: %w", env, err)
		}
	}

	if sc.databaseCreated {
		if err := b.composeRun(ctx, webService, "bundle", "exec", "rake", "db:initial_setup"); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}
	return nil
}

// databasePresent probes for an existing schema; rails db:version exits
// non-zero when the database does not exist. Dry runs report absent so the
// printed plan shows the create path.
func (b *bootstrapper) databasePresent(ctx context.Context) (bool, error) {
	if b.opts.dryRun {
		return false, nil
	}
	_, err := b.composeRunOutput(ctx, webService, "bundle", "exec", "rails", "db:version")
	if err != nil {
		b.debugf("db:version probe: %v", err)
		return false, nil
	}
	return true, nil
}

// resolveDatabaseAction picks drop or migrate for an existing database:
// a remembered per-project or global answer wins, automation defaults to
// drop, and otherwise the operator is asked (default migrate). A destructive
// interactive answer still requires a final confirmation.
func (b *bootstrapper) resolveDatabaseAction(ctx context.Context) (databaseAction, error) {
	if remembered, scope := b.store.EffectiveDatabaseAction(b.cfg.callerDir); scope != configstore.ScopeUnset {
		action := parseDatabaseAction(remembered)
		if action != 0 {
			fmt.Printf("Using remembered database answer %q (%s scope).\n", remembered, scope)
			return action, nil
		}
	}

	if b.cfg.automation {
		return actionDrop, nil
	}

	choice, err := b.prompter.ChooseDatabaseAction(ctx, b.cfg.callerDir)
	if err != nil {
		return 0, err
	}

	if choice.action == actionDrop {
		confirmed, err := b.prompter.Confirm(ctx,
			"This destroys ALL data in the development and test databases. Continue?", false)
		if err != nil {
			return 0, err
		}
		if !confirmed {
			fmt.Println("Keeping existing data; migrating instead.")
			choice = databaseChoice{action: actionMigrate, remember: choice.remember}
		}
	}

	if choice.remember {
		b.rememberDatabaseAction(choice.action)
	}
	return choice.action, nil
}

func (b *bootstrapper) rememberDatabaseAction(action databaseAction) {
	if err := b.store.SetProjectDatabaseAction(b.cfg.callerDir, action.String()); err != nil {
		b.debugf("remember database action: %v", err)
		return
	}
	if err := configstore.Save(*b.store); err != nil {
		fmt.Printf("Warning: could not save the remembered database answer: %v\n", err)
	}
}

func parseDatabaseAction(raw string) databaseAction {
	switch raw {
	case "migrate":
		return actionMigrate
	case "drop":
		return actionDrop
	default:
		return 0
	}
}
