package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/reports"
)

// PacketRenderer builds and renders one tenant's board packet.
type PacketRenderer interface {
	BoardPacketPDF(ctx context.Context, tenantID int64, period time.Time) (reports.RenderResult, error)
}

// BoardPackJob renders board packets to PDF files under StorageDir.
type BoardPackJob struct {
	Reports    PacketRenderer
	StorageDir string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewBoardPackJob initialises the boardpack:render handler.
func NewBoardPackJob(renderer PacketRenderer, storageDir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *BoardPackJob {
	return &BoardPackJob{
		Reports:    renderer,
		StorageDir: storageDir,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle renders one board packet.
func (j *BoardPackJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil || j.StorageDir == "" {
		return errors.New("board pack: handler not configured")
	}
	var payload BoardPackPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == 0 {
		return asynq.SkipRetry
	}
	period, err := parsePeriod(payload.Period, j.clock())
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskBoardPackRender)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	result, err := j.Reports.BoardPacketPDF(ctx, payload.TenantID, period)
	if err != nil {
		resultErr = err
		return resultErr
	}

	if err := os.MkdirAll(j.StorageDir, 0o755); err != nil {
		resultErr = err
		return resultErr
	}
	name := fmt.Sprintf("boardpack-%d-%s.pdf", payload.TenantID, period.Format("2006-01"))
	path := filepath.Join(j.StorageDir, name)
	if err := os.WriteFile(path, result.PDF, 0o644); err != nil {
		resultErr = err
		return resultErr
	}

	j.Logger.Info("board packet rendered",
		slog.Int64("tenant_id", payload.TenantID),
		slog.String("period", period.Format("2006-01")),
		slog.String("path", path),
		slog.Int64("bytes", result.Length),
	)
	return nil
}
