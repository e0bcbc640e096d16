// Package triage moves reports out of pending. The only transitions are
// pending to verified and pending to rejected; both end states are terminal.
package triage

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/metrics"
	"openvote/dashboard/internal/rbac"
	"openvote/dashboard/internal/report"
)

type Updater interface {
	UpdateStatus(ctx context.Context, reportID string, status report.Status) error
}

// Resyncer reloads the whole snapshot from the server.
type Resyncer interface {
	Refresh(ctx context.Context) error
}

var transitions = map[report.Status][]report.Status{
	report.StatusPending: {report.StatusVerified, report.StatusRejected},
}

// Allowed reports whether from -> to is a defined transition.
func Allowed(from, to report.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Machine struct {
	store   *report.Store
	updater Updater
	resync  Resyncer
	metrics *metrics.Set
}

func New(store *report.Store, updater Updater, resync Resyncer, m *metrics.Set) *Machine {
	return &Machine{store: store, updater: updater, resync: resync, metrics: m}
}

// RequestTransition asks the server to move reportID to status on behalf of
// role. Role and current status are checked locally first; a rejected
// request never reaches the network. On success the snapshot is reloaded
// rather than patched, so it matches the server.
func (m *Machine) RequestTransition(ctx context.Context, reportID string, to report.Status, role rbac.Role) error {
	if !rbac.Can(role, rbac.ActionTriageReport) {
		m.metrics.Transition("permission_denied")
		return apperr.Permission(string(role), "change report status")
	}

	current, ok := m.store.Get(reportID)
	if !ok {
		m.metrics.Transition("invalid_state")
		return apperr.New(apperr.ErrInvalidStateTransition, "UNKNOWN_REPORT", fmt.Sprintf("report %s is not loaded", reportID))
	}
	if !Allowed(current.Status, to) {
		m.metrics.Transition("invalid_state")
		return apperr.New(apperr.ErrInvalidStateTransition, "INVALID_TRANSITION",
			fmt.Sprintf("report %s cannot go from %s to %s", reportID, current.Status, to))
	}

	entry := log.WithFields(log.Fields{
		"report": reportID,
		"from":   string(current.Status),
		"to":     string(to),
		"role":   string(role),
	})
	if err := m.updater.UpdateStatus(ctx, reportID, to); err != nil {
		m.metrics.Transition("failed")
		entry.WithError(err).Warn("triage: update rejected")
		return apperr.Wrap(apperr.ErrTransitionFailed, "TRANSITION_FAILED", "the status change was not saved", err)
	}
	m.metrics.Transition("ok")
	entry.Info("triage: status changed")

	if m.resync != nil {
		if err := m.resync.Refresh(ctx); err != nil {
			entry.WithError(err).Warn("triage: resync after transition failed")
		}
	}
	return nil
}
