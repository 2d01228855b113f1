package policy

import (
	"context"
	"errors"
	"fmt"

	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/opnsense"
)

var (
	// ErrAliasNotFound means the configured alias does not exist remotely.
	ErrAliasNotFound = opnsense.ErrAliasNotFound
	// ErrPushFailed means the alias content update was rejected or failed.
	ErrPushFailed = errors.New("alias content push failed")
	// ErrApplyFailed means content was pushed but the appliance did not
	// apply it. The remote alias may hold the new content unapplied.
	ErrApplyFailed = errors.New("alias apply failed")
	// ErrInvalidState is returned when asked to reconcile towards Unknown.
	ErrInvalidState = errors.New("invalid desired state")
)

// Outcome is the result of one reconciliation.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeUpdated
	OutcomeAliasNotFound
	OutcomeResolveFailed
	OutcomePushFailed
	OutcomeApplyFailed
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	case OutcomeAliasNotFound:
		return "alias_not_found"
	case OutcomeResolveFailed:
		return "resolve_failed"
	case OutcomePushFailed:
		return "push_failed"
	case OutcomeApplyFailed:
		return "apply_failed"
	default:
		return "invalid"
	}
}

// AliasAPI is the subset of the appliance API the reconciler drives.
type AliasAPI interface {
	FindAliasUUID(ctx context.Context, name string) (string, error)
	SetAliasContent(ctx context.Context, uuid string, content []string) error
	ApplyAliases(ctx context.Context) error
}

// Target identifies one appliance to reconcile.
type Target struct {
	ID        string
	Name      string
	AliasName string
	API       AliasAPI
}

// Reconciler pushes alias content for a desired State and records the
// state in Memory once the appliance confirms the apply.
type Reconciler struct {
	blocked []string
	allowed []string
	logger  *logging.Logger
}

// NewReconciler creates a reconciler with the content lists for each state.
func NewReconciler(blocked, allowed []string, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.WithComponent("policy")
	}
	return &Reconciler{
		blocked: append([]string(nil), blocked...),
		allowed: append([]string(nil), allowed...),
		logger:  logger,
	}
}

// Content returns the alias content for a state.
func (r *Reconciler) Content(s State) []string {
	switch s {
	case Blocked:
		return append([]string(nil), r.blocked...)
	case Allowed:
		return append([]string(nil), r.allowed...)
	}
	return nil
}

// Reconcile brings the target's alias to desired. The pipeline is
// resolve, push, apply; mem is written only after a successful apply.
func (r *Reconciler) Reconcile(ctx context.Context, t Target, desired State, mem Memory) (Outcome, error) {
	if desired != Blocked && desired != Allowed {
		return OutcomeInvalid, fmt.Errorf("%w: %v", ErrInvalidState, desired)
	}

	log := r.logger.WithFields(map[string]any{
		"instance": t.Name,
		"alias":    t.AliasName,
	})

	current := mem.Current(t.ID)
	if current == desired {
		log.Debug("policy already applied", "state", desired)
		return OutcomeUnchanged, nil
	}

	log.Info("policy change required", "from", current, "to", desired)

	uuid, err := t.API.FindAliasUUID(ctx, t.AliasName)
	if err != nil {
		if errors.Is(err, ErrAliasNotFound) {
			log.Warn("alias not found, skipping instance", "error", err)
			return OutcomeAliasNotFound, fmt.Errorf("resolve alias %q on %s: %w", t.AliasName, t.Name, err)
		}
		log.Error("alias lookup failed", "error", err)
		return OutcomeResolveFailed, fmt.Errorf("resolve alias %q on %s: %w", t.AliasName, t.Name, err)
	}

	content := r.Content(desired)
	if err := t.API.SetAliasContent(ctx, uuid, content); err != nil {
		log.Error("alias content update failed", "uuid", uuid, "error", err)
		return OutcomePushFailed, fmt.Errorf("%w: %s: %w", ErrPushFailed, t.Name, err)
	}

	if err := t.API.ApplyAliases(ctx); err != nil {
		log.Error("alias apply failed after content update",
			"uuid", uuid,
			"partial", true,
			"error", err)
		return OutcomeApplyFailed, fmt.Errorf("%w: %s: %w", ErrApplyFailed, t.Name, err)
	}

	mem[t.ID] = desired
	log.Audit("policy.apply", t.AliasName, map[string]any{
		"instance": t.Name,
		"state":    desired.String(),
		"entries":  len(content),
	})
	log.Info("policy applied", "state", desired)
	return OutcomeUpdated, nil
}
