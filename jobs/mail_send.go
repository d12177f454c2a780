package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/covenant-hq/covenant/internal/jobs"
	"github.com/covenant-hq/covenant/internal/mail"
)

// SendEmailJob delivers queued notices through the SMTP mailer.
type SendEmailJob struct {
	Mailer  mail.Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSendEmailJob initialises the mail:send handler.
func NewSendEmailJob(mailer mail.Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	return &SendEmailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes one mail:send task.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("mail send: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeSendEmail)
	err := j.Mailer.Send(ctx, mail.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body})
	if err != nil {
		j.Logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
	}
	return tracker.End(err)
}
