package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/metrics"
)

type SummaryReader interface {
	Get(ctx context.Context, owner string, id uuid.UUID) (*entity.DatasetSummary, error)
}

type ReportStorage interface {
	PutReport(ctx context.Context, owner string, id uuid.UUID, pdf []byte) error
	DeleteDataset(ctx context.Context, owner string, id uuid.UUID) error
}

// ReportUseCase pre-renders the PDF report of freshly ingested datasets.
type ReportUseCase struct {
	Reader   SummaryReader
	Storage  ReportStorage
	Renderer ReportRenderer

	log *logrus.Entry
}

func NewReportUseCase(reader SummaryReader, storage ReportStorage, renderer ReportRenderer) *ReportUseCase {
	return &ReportUseCase{
		Reader:   reader,
		Storage:  storage,
		Renderer: renderer,
		log:      logrus.WithField("component", "report-usecase"),
	}
}

// HandleIngested renders and stores the report for the dataset named in msg.
// A dataset already evicted by retention is skipped without error.
func (u *ReportUseCase) HandleIngested(ctx context.Context, msg entity.DatasetIngestedMessage) error {
	id, err := uuid.Parse(msg.DatasetID)
	if err != nil {
		u.log.WithError(err).WithField("dataset_id", msg.DatasetID).Warn("skipping event with invalid dataset id")
		return nil
	}

	summary, err := u.Reader.Get(ctx, msg.Owner, id)
	if errors.Is(err, entity.ErrNotFound) {
		u.log.WithField("dataset_id", id).Info("dataset gone before its report was rendered")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", id, err)
	}

	pdf, err := u.Renderer.Render(*summary)
	if err != nil {
		return err
	}
	if err := u.Storage.PutReport(ctx, summary.Owner, summary.ID, pdf); err != nil {
		return fmt.Errorf("store report %s: %w", id, err)
	}

	// Retention may have evicted the dataset, and cleaned its objects, while
	// the report was rendering.
	if _, err := u.Reader.Get(ctx, summary.Owner, summary.ID); errors.Is(err, entity.ErrNotFound) {
		u.log.WithField("dataset_id", id).Info("dataset evicted during rendering, removing its report")
		if err := u.Storage.DeleteDataset(ctx, summary.Owner, summary.ID); err != nil {
			return fmt.Errorf("remove orphaned report %s: %w", id, err)
		}
		return nil
	} else if err != nil {
		u.log.WithError(err).WithField("dataset_id", id).Warn("could not confirm dataset after storing its report")
	}

	metrics.ReportsRenderedTotal.WithLabelValues("worker").Inc()
	u.log.WithFields(logrus.Fields{"dataset_id": id, "owner": summary.Owner, "bytes": len(pdf)}).Info("report stored")
	return nil
}
