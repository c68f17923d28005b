package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"go.uber.org/zap"
)

// Publisher of the results of the jobs
type Publisher interface {
	Publish(ctx context.Context, data ...[]byte) error
}

// HandleJob runs the pipeline for a job received from a queue and publishes its result.
// Temporary failures are returned without publishing, for the job to be retried.
func (wf *Workflow) HandleJob(ctx context.Context, s Session, data []byte, publisher Publisher) error {
	job := common.TileRequest{}
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if job.ID == "" || job.AOI == "" {
		return fmt.Errorf("invalid payload: missing id or aoi")
	}
	ctx = log.With(ctx, "job", job.ID)

	res, err := wf.Run(ctx, s, Request{
		AOI:        job.AOI,
		DayRange:   job.DayRange,
		CloudCover: job.CloudCover,
		MaxTiles:   job.MaxTiles,
	})
	if err != nil && service.Temporary(err) {
		log.Logger(ctx).Warn("job temporary failure", zap.Error(err))
		return err
	}
	if err != nil {
		log.Logger(ctx).Warn("job failed", zap.Error(err))
	}

	resb, e := json.Marshal(res.ToCommon(job.ID, err))
	if e != nil {
		return service.MakeTemporary(fmt.Errorf("marshal: %w", e))
	}
	if e := publisher.Publish(ctx, resb); e != nil {
		return service.MakeTemporary(fmt.Errorf("failed to enqueue result: %w", e))
	}
	log.Logger(ctx).Sugar().Infof("job %s: %s", job.ID, res.Outcome)
	return nil
}
