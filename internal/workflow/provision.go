// pattern: Imperative Shell

package workflow

import (
	"fmt"
	"path/filepath"

	"wtctl/internal/notify"
	"wtctl/internal/task"
)

// ProvisionMode selects what happens to a worktree before a switch.
type ProvisionMode string

const (
	// ProvisionNone switches without provisioning.
	ProvisionNone ProvisionMode = "none"
	// ProvisionKeep claims the worktree for the context without touching
	// its files, then switches.
	ProvisionKeep ProvisionMode = "keep"
	// ProvisionOverwrite runs the full provision sequence, then switches.
	ProvisionOverwrite ProvisionMode = "overwrite"
)

// ParseProvisionMode parses a mode name. The empty string is ProvisionNone.
func ParseProvisionMode(s string) (ProvisionMode, error) {
	switch ProvisionMode(s) {
	case "", ProvisionNone:
		return ProvisionNone, nil
	case ProvisionKeep, ProvisionOverwrite:
		return ProvisionMode(s), nil
	}
	return "", fmt.Errorf("invalid provision mode %q: want keep, overwrite or none", s)
}

// ProvisionAndSwitch prepares path according to mode and switches the
// active link to it. Provisioning takes the first 40% of the scope.
func (w *Workflows) ProvisionAndSwitch(scope *task.Scope, path string, mode ProvisionMode) error {
	if mode == ProvisionNone {
		return w.switcher.Switch(scope, path)
	}

	cur, err := w.contexts.Current()
	if err != nil {
		return w.fail("Switch Failed", err)
	}

	switch mode {
	case ProvisionKeep:
		scope.Text("Writing provision marker...")
		if err := w.markers.Write(path, cur.Name); err != nil {
			w.logger.Warn("writing provision marker failed", "path", path, "error", err)
		}
	case ProvisionOverwrite:
		if err := w.provisioner.Provision(scope.Sub(0, 0.40), path, cur, false); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid provision mode %q", mode)
	}

	scope.Fraction(0.40)
	if err := w.switcher.Switch(scope.Sub(0.40, 0.60), path); err != nil {
		return err
	}
	scope.Fraction(1)
	return nil
}

// ProvisionWorktree provisions path for the current context and refreshes
// the inventory. A worktree the context already provisioned is left alone.
func (w *Workflows) ProvisionWorktree(scope *task.Scope, path string, keepExisting bool) error {
	cur, err := w.contexts.Current()
	if err != nil {
		return w.fail("No Context", err)
	}
	name := filepath.Base(path)
	if w.markers.IsProvisionedByContext(path, cur.Name) {
		w.notifier.Notify("Already Provisioned",
			fmt.Sprintf("This worktree is already provisioned by '%s'", cur.Name), notify.Info)
		return nil
	}

	if err := w.provisioner.Provision(scope.Sub(0, 0.95), path, cur, keepExisting); err != nil {
		return err
	}
	scope.Fraction(0.95)
	w.refresh(scope.Context())
	scope.Fraction(1)

	w.notifier.Notify("Worktree Provisioned",
		fmt.Sprintf("Provisioned %s for context '%s'", name, cur.Name), notify.Info)
	return nil
}
