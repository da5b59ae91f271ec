package catalog

import (
	"context"
	"fmt"
)

// RefreshJobName labels the scheduled catalog refresh.
const RefreshJobName = "catalog.refresh"

// RefreshJob refreshes the cached catalog on the cron schedule.
type RefreshJob struct {
	svc Service
}

func NewRefreshJob(svc Service) (*RefreshJob, error) {
	if svc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &RefreshJob{svc: svc}, nil
}

func (j *RefreshJob) Name() string { return RefreshJobName }

func (j *RefreshJob) Run(ctx context.Context) error {
	_, err := j.svc.Refresh(ctx)
	return err
}
