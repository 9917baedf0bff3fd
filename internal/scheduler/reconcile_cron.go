package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/SuperHuman/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// reconcileTimeout bounds a single scheduled pass.
const reconcileTimeout = 10 * time.Minute

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) (jobs.Report, error)
}

// StartReconcileJobs schedules r on the given cron spec and starts the
// scheduler. An empty spec disables scheduling and returns a nil *cron.Cron.
func StartReconcileJobs(spec string, r Job) (*cron.Cron, error) {
	if spec == "" {
		logrus.Info("Aggregate reconciliation disabled")
		return nil, nil
	}

	// Overlapping passes would compete on the same aggregates.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		if _, err := r.Run(ctx); err != nil {
			logrus.WithError(err).Error("Aggregate reconciliation failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}

	c.Start()
	logrus.WithField("schedule", spec).Info("Aggregate reconciliation scheduled")
	return c, nil
}
