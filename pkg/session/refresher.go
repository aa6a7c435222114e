package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tutoria/dashboard/pkg/observability"
)

// DefaultRefreshSchedule renews the access token well before a typical
// one hour lifetime ends
const DefaultRefreshSchedule = "@every 45m"

// Refresher renews the access token of a signed-in session on a schedule
// and signs out when renewal fails
type Refresher struct {
	store    *Store
	schedule string
	timeout  time.Duration
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewRefresher creates a Refresher; an empty schedule means
// DefaultRefreshSchedule
func NewRefresher(store *Store, schedule string) *Refresher {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	return &Refresher{
		store:    store,
		schedule: schedule,
		timeout:  30 * time.Second,
		logger:   store.logger.WithField("component", "refresher"),
		cron:     cron.New(),
	}
}

// Start schedules the refresh job
func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.Run); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.WithField("schedule", r.schedule).Debug("token refresher started")
	return nil
}

// Stop halts the schedule; the returned context is done once a running
// job finishes
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

// Run performs one refresh. It does nothing while nobody is signed in.
func (r *Refresher) Run() {
	if !r.store.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.Refresh(ctx); err != nil {
		r.logger.WithError(err).Warn("scheduled token refresh failed, signing out")
		if err := r.store.Logout(ctx); err != nil {
			r.logger.WithError(err).Error("failed to clear session")
		}
		return
	}
	r.logger.Debug("scheduled token refresh succeeded")
}
