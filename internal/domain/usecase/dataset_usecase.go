package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/equipment"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/metrics"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

type DatasetStore interface {
	Insert(ctx context.Context, owner, label string, agg entity.Aggregate, limit int) (*entity.DatasetSummary, []entity.DatasetRef, error)
	Enforce(ctx context.Context, owner string, limit int) ([]entity.DatasetRef, error)
	EnforceGlobal(ctx context.Context, limit int) ([]entity.DatasetRef, error)
	Latest(ctx context.Context, owner string) (*entity.DatasetSummary, error)
	History(ctx context.Context, owner string, n int) ([]entity.DatasetSummary, error)
	Get(ctx context.Context, owner string, id uuid.UUID) (*entity.DatasetSummary, error)
	Owners(ctx context.Context) ([]string, error)
}

type SummaryCache interface {
	GetLatest(ctx context.Context, owner string) (*entity.DatasetSummary, error)
	SetLatest(ctx context.Context, summary *entity.DatasetSummary) (bool, error)
	Invalidate(ctx context.Context, owners ...string) error
}

type ObjectStorage interface {
	ArchiveUpload(ctx context.Context, owner string, id uuid.UUID, label string, raw []byte) error
	PutReport(ctx context.Context, owner string, id uuid.UUID, pdf []byte) error
	ReportURL(ctx context.Context, owner string, id uuid.UUID, expiry time.Duration) (string, error)
	DeleteDataset(ctx context.Context, owner string, id uuid.UUID) error
}

type Publisher interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

type ReportRenderer interface {
	Render(summary entity.DatasetSummary) ([]byte, error)
}

// Report is either a link to a stored PDF or the rendered document itself.
type Report struct {
	Summary entity.DatasetSummary
	URL     string
	PDF     []byte
}

// DatasetUseCase runs ingestion and serves summary reads. Cache, Storage and
// Publisher are optional; a nil value disables the matching side effect.
type DatasetUseCase struct {
	Store     DatasetStore
	Cache     SummaryCache
	Storage   ObjectStorage
	Publisher Publisher
	Renderer  ReportRenderer

	Limit        int
	ReportURLTTL time.Duration

	retryBaseDelay time.Duration
	log            *logrus.Entry
}

func NewDatasetUseCase(store DatasetStore, cache SummaryCache, storage ObjectStorage, pub Publisher, renderer ReportRenderer, limit int) *DatasetUseCase {
	if limit < 1 {
		limit = entity.DefaultRetentionLimit
	}
	return &DatasetUseCase{
		Store:        store,
		Cache:        cache,
		Storage:      storage,
		Publisher:    pub,
		Renderer:     renderer,
		Limit:        limit,
		ReportURLTTL: 24 * time.Hour,

		retryBaseDelay: 500 * time.Millisecond,
		log:            logrus.WithField("component", "dataset-usecase"),
	}
}

// Ingest parses raw, aggregates it and stores the summary for owner. Nothing
// is persisted when the input is rejected.
func (u *DatasetUseCase) Ingest(ctx context.Context, owner, label string, raw []byte) (*entity.IngestResult, error) {
	if owner == "" {
		return nil, entity.ErrMissingOwner
	}
	start := time.Now()
	log := u.log.WithFields(logrus.Fields{"owner": owner, "label": label})

	table, err := equipment.Parse(raw)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(metrics.ResultInvalidInput).Inc()
		log.WithError(err).Info("upload rejected")
		return nil, err
	}

	agg, err := equipment.Aggregate(table.Rows)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(metrics.ResultInvalidInput).Inc()
		return nil, err
	}

	summary, evicted, err := u.Store.Insert(ctx, owner, label, agg, u.Limit)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(metrics.ResultError).Inc()
		log.WithError(err).Error("failed to store dataset summary")
		return nil, fmt.Errorf("store dataset summary: %w", err)
	}

	metrics.IngestionsTotal.WithLabelValues(metrics.ResultOK).Inc()
	metrics.IngestRows.Observe(float64(summary.RowCount))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	metrics.RetentionEvictedTotal.WithLabelValues(metrics.ScopeOwner).Add(float64(len(evicted)))

	log = log.WithFields(logrus.Fields{"dataset_id": summary.ID, "rows": summary.RowCount, "evicted": len(evicted)})
	log.Info("dataset ingested")

	u.afterCommit(ctx, log, summary, raw, evicted)

	return &entity.IngestResult{
		Summary: *summary,
		Rows:    table.Rows,
		Columns: table.Columns,
		Evicted: evicted,
	}, nil
}

// afterCommit runs the side effects of a committed ingestion. Failures are
// logged only; the summary is already durable.
func (u *DatasetUseCase) afterCommit(ctx context.Context, log *logrus.Entry, summary *entity.DatasetSummary, raw []byte, evicted []entity.DatasetRef) {
	if u.Cache != nil {
		if _, err := u.Cache.SetLatest(ctx, summary); err != nil {
			log.WithError(err).Warn("failed to cache latest summary")
		}
	}

	if u.Storage != nil {
		if err := u.Storage.ArchiveUpload(ctx, summary.Owner, summary.ID, summary.Label, raw); err != nil {
			log.WithError(err).Warn("failed to archive upload")
		}
	}
	u.removeObjects(ctx, evicted)

	if u.Publisher != nil {
		msg := entity.DatasetIngestedMessage{
			DatasetID: summary.ID.String(),
			Owner:     summary.Owner,
			Label:     summary.Label,
			CreatedAt: summary.CreatedAt,
		}
		for _, ref := range evicted {
			msg.Evicted = append(msg.Evicted, ref.ID.String())
		}

		body, err := utils.ToRawMessage(msg)
		if err == nil {
			err = u.publishWithRetry(ctx, body)
		}
		if err != nil {
			log.WithError(err).Warn("failed to publish dataset event")
		}
	}
}

func (u *DatasetUseCase) removeObjects(ctx context.Context, refs []entity.DatasetRef) {
	if u.Storage == nil {
		return
	}
	for _, ref := range refs {
		if err := u.Storage.DeleteDataset(ctx, ref.Owner, ref.ID); err != nil {
			u.log.WithError(err).WithFields(logrus.Fields{"owner": ref.Owner, "dataset_id": ref.ID}).
				Warn("failed to remove objects of evicted dataset")
		}
	}
}

// Latest returns the newest summary for owner, or entity.ErrNotFound.
func (u *DatasetUseCase) Latest(ctx context.Context, owner string) (*entity.DatasetSummary, error) {
	if u.Cache != nil {
		summary, err := u.Cache.GetLatest(ctx, owner)
		if err == nil {
			metrics.QueriesTotal.WithLabelValues("latest", "cache_hit").Inc()
			return summary, nil
		}
		if !errors.Is(err, entity.ErrCacheMiss) {
			u.log.WithError(err).WithField("owner", owner).Warn("summary cache unavailable")
		}
	}

	summary, err := u.Store.Latest(ctx, owner)
	if errors.Is(err, entity.ErrNotFound) {
		metrics.QueriesTotal.WithLabelValues("latest", metrics.ResultNotFound).Inc()
		return nil, err
	}
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("latest", metrics.ResultError).Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues("latest", metrics.ResultOK).Inc()

	if u.Cache != nil {
		if _, err := u.Cache.SetLatest(ctx, summary); err != nil {
			u.log.WithError(err).WithField("owner", owner).Warn("failed to cache latest summary")
		}
	}
	return summary, nil
}

// History returns up to n summaries for owner, newest first. An owner without
// uploads gets an empty slice.
func (u *DatasetUseCase) History(ctx context.Context, owner string, n int) ([]entity.DatasetSummary, error) {
	if n <= 0 {
		n = u.Limit
	}
	summaries, err := u.Store.History(ctx, owner, n)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("history", metrics.ResultError).Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues("history", metrics.ResultOK).Inc()
	if summaries == nil {
		summaries = []entity.DatasetSummary{}
	}
	return summaries, nil
}

func (u *DatasetUseCase) Get(ctx context.Context, owner string, id uuid.UUID) (*entity.DatasetSummary, error) {
	return u.Store.Get(ctx, owner, id)
}

// Report resolves the dataset (latest when id is nil) and returns a link to
// its pre-rendered PDF, rendering it on the spot when none is stored.
func (u *DatasetUseCase) Report(ctx context.Context, owner string, id *uuid.UUID) (*Report, error) {
	var (
		summary *entity.DatasetSummary
		err     error
	)
	if id == nil {
		summary, err = u.Store.Latest(ctx, owner)
	} else {
		summary, err = u.Store.Get(ctx, owner, *id)
	}
	if err != nil {
		return nil, err
	}

	if u.Storage != nil {
		url, err := u.Storage.ReportURL(ctx, owner, summary.ID, u.ReportURLTTL)
		if err == nil {
			return &Report{Summary: *summary, URL: url}, nil
		}
		if !errors.Is(err, entity.ErrObjectNotFound) {
			u.log.WithError(err).WithField("dataset_id", summary.ID).Warn("failed to look up stored report")
		}
	}

	pdf, err := u.Renderer.Render(*summary)
	if err != nil {
		return nil, err
	}
	metrics.ReportsRenderedTotal.WithLabelValues("inline").Inc()
	return &Report{Summary: *summary, PDF: pdf}, nil
}

// Prune re-applies the retention window to one owner.
func (u *DatasetUseCase) Prune(ctx context.Context, owner string, limit int) ([]entity.DatasetRef, error) {
	evicted, err := u.Store.Enforce(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("enforce retention for %s: %w", owner, err)
	}
	u.afterPrune(ctx, metrics.ScopeOwner, evicted)
	return evicted, nil
}

// PruneAll re-applies the retention window to every owner.
func (u *DatasetUseCase) PruneAll(ctx context.Context, limit int) ([]entity.DatasetRef, error) {
	owners, err := u.Store.Owners(ctx)
	if err != nil {
		return nil, err
	}

	var all []entity.DatasetRef
	for _, owner := range owners {
		evicted, err := u.Prune(ctx, owner, limit)
		if err != nil {
			return all, err
		}
		all = append(all, evicted...)
	}
	return all, nil
}

// PruneGlobal keeps only the newest limit summaries across all owners.
func (u *DatasetUseCase) PruneGlobal(ctx context.Context, limit int) ([]entity.DatasetRef, error) {
	evicted, err := u.Store.EnforceGlobal(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("enforce global retention: %w", err)
	}
	u.afterPrune(ctx, metrics.ScopeGlobal, evicted)
	return evicted, nil
}

func (u *DatasetUseCase) afterPrune(ctx context.Context, scope string, evicted []entity.DatasetRef) {
	metrics.RetentionEvictedTotal.WithLabelValues(scope).Add(float64(len(evicted)))
	if len(evicted) == 0 {
		return
	}

	if u.Cache != nil {
		seen := make(map[string]bool)
		var owners []string
		for _, ref := range evicted {
			if !seen[ref.Owner] {
				seen[ref.Owner] = true
				owners = append(owners, ref.Owner)
			}
		}
		if err := u.Cache.Invalidate(ctx, owners...); err != nil {
			u.log.WithError(err).Warn("failed to invalidate summary cache")
		}
	}
	u.removeObjects(ctx, evicted)
	u.log.WithFields(logrus.Fields{"scope": scope, "evicted": len(evicted)}).Info("retention enforced")
}

func (u *DatasetUseCase) publishWithRetry(ctx context.Context, msg json.RawMessage) error {
	var (
		baseDelay   = u.retryBaseDelay
		maxDelay    = 10 * time.Second
		maxAttempts = 5
	)

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := u.Publisher.Publish(ctx, msg); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}

		backoff := baseDelay << (attempt - 1)
		if backoff > maxDelay {
			backoff = maxDelay
		}

		select {
		case <-time.After(backoff):

		case <-ctx.Done():
			return errors.New("publish canceled by context")
		}
	}

	return lastErr
}
