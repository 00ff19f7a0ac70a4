package psql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/retention"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

// DatasetRecord is the table row behind entity.DatasetSummary.
type DatasetRecord struct {
	ID              uuid.UUID                                  `gorm:"primaryKey;type:uuid"`
	Owner           string                                     `gorm:"not null;type:text;index:idx_dataset_owner_recent,priority:1"`
	Label           string                                     `gorm:"not null;type:text"`
	CreatedAt       time.Time                                  `gorm:"not null;index:idx_dataset_owner_recent,priority:2,sort:desc"`
	RowCount        int                                        `gorm:"not null"`
	MeanFlowrate    float64                                    `gorm:"not null"`
	MeanPressure    float64                                    `gorm:"not null"`
	MeanTemperature float64                                    `gorm:"not null"`
	CategoryCounts  datatypes.JSONType[entity.CategoryCounts] `gorm:"not null"`
}

func (DatasetRecord) TableName() string { return "dataset_summaries" }

func (r DatasetRecord) toEntity() entity.DatasetSummary {
	return entity.DatasetSummary{
		ID:        r.ID,
		Owner:     r.Owner,
		Label:     r.Label,
		CreatedAt: r.CreatedAt.UTC(),
		RowCount:  r.RowCount,
		Means: entity.Means{
			Flowrate:    r.MeanFlowrate,
			Pressure:    r.MeanPressure,
			Temperature: r.MeanTemperature,
		},
		CategoryCounts: r.CategoryCounts.Data(),
	}
}

type GormDatasetRepo struct {
	db    *gorm.DB
	locks *utils.KeyLock
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

type Option func(*GormDatasetRepo)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *GormDatasetRepo) { r.now = now }
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(r *GormDatasetRepo) { r.newID = gen }
}

func NewGormDatasetRepo(db *gorm.DB, opts ...Option) *GormDatasetRepo {
	r := &GormDatasetRepo{
		db:    db,
		locks: utils.NewKeyLock(),
		now:   time.Now,
		newID: uuid.NewV7,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *GormDatasetRepo) Migrate() error {
	return r.db.AutoMigrate(&DatasetRecord{})
}

// Insert persists a new summary for owner and enforces the retention window in
// the same transaction. The new record is always kept; ids evicted by
// retention are returned. If enforcement fails the insert is rolled back.
// A limit below one is raised to one; wiping an owner is Enforce's job.
func (r *GormDatasetRepo) Insert(ctx context.Context, owner, label string, agg entity.Aggregate, limit int) (*entity.DatasetSummary, []entity.DatasetRef, error) {
	if limit < 1 {
		limit = 1
	}
	id, err := r.newID()
	if err != nil {
		return nil, nil, fmt.Errorf("generate dataset id: %w", err)
	}

	rec := DatasetRecord{
		ID:              id,
		Owner:           owner,
		Label:           label,
		CreatedAt:       r.now().UTC().Truncate(time.Microsecond),
		RowCount:        agg.RowCount,
		MeanFlowrate:    agg.Means.Flowrate,
		MeanPressure:    agg.Means.Pressure,
		MeanTemperature: agg.Means.Temperature,
		CategoryCounts:  datatypes.NewJSONType(agg.CategoryCounts),
	}

	unlock := r.locks.Lock(owner)
	defer unlock()

	var evicted []entity.DatasetRef
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, owner); err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}
		evicted, err = enforce(tx, tx.Where("owner = ?", owner), limit)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	summary := rec.toEntity()
	return &summary, evicted, nil
}

// Enforce trims owner's summaries to the newest limit records.
func (r *GormDatasetRepo) Enforce(ctx context.Context, owner string, limit int) ([]entity.DatasetRef, error) {
	unlock := r.locks.Lock(owner)
	defer unlock()

	var evicted []entity.DatasetRef
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, owner); err != nil {
			return err
		}
		var err error
		evicted, err = enforce(tx, tx.Where("owner = ?", owner), limit)
		return err
	})
	return evicted, err
}

// EnforceGlobal trims the whole table, across owners, to the newest limit records.
func (r *GormDatasetRepo) EnforceGlobal(ctx context.Context, limit int) ([]entity.DatasetRef, error) {
	var evicted []entity.DatasetRef
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		evicted, err = enforce(tx, tx, limit)
		return err
	})
	return evicted, err
}

func enforce(tx *gorm.DB, scope *gorm.DB, limit int) ([]entity.DatasetRef, error) {
	var entries []retention.Entry
	if err := scope.Model(&DatasetRecord{}).Select("id", "owner", "created_at").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list datasets for retention: %w", err)
	}

	excess := retention.ExcessRecords(entries, limit)
	if len(excess) == 0 {
		return nil, nil
	}
	if err := tx.Where("id IN ?", excess).Delete(&DatasetRecord{}).Error; err != nil {
		return nil, fmt.Errorf("delete excess datasets: %w", err)
	}

	owners := make(map[uuid.UUID]string, len(entries))
	for _, e := range entries {
		owners[e.ID] = e.Owner
	}
	refs := make([]entity.DatasetRef, len(excess))
	for i, id := range excess {
		refs[i] = entity.DatasetRef{ID: id, Owner: owners[id]}
	}
	return refs, nil
}

// lockOwner takes a transaction-scoped advisory lock so that gateways running
// in separate processes serialize per owner as well.
func lockOwner(tx *gorm.DB, owner string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", owner).Error; err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}
	return nil
}

func (r *GormDatasetRepo) Latest(ctx context.Context, owner string) (*entity.DatasetSummary, error) {
	var rec DatasetRecord
	err := r.recent(ctx, owner).Limit(1).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest dataset: %w", err)
	}
	summary := rec.toEntity()
	return &summary, nil
}

func (r *GormDatasetRepo) History(ctx context.Context, owner string, n int) ([]entity.DatasetSummary, error) {
	if n <= 0 {
		return []entity.DatasetSummary{}, nil
	}

	var recs []DatasetRecord
	if err := r.recent(ctx, owner).Limit(n).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("dataset history: %w", err)
	}

	out := make([]entity.DatasetSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toEntity())
	}
	return out, nil
}

func (r *GormDatasetRepo) Get(ctx context.Context, owner string, id uuid.UUID) (*entity.DatasetSummary, error) {
	var rec DatasetRecord
	err := r.db.WithContext(ctx).Where("owner = ? AND id = ?", owner, id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	summary := rec.toEntity()
	return &summary, nil
}

// Owners lists every owner with at least one stored summary.
func (r *GormDatasetRepo) Owners(ctx context.Context) ([]string, error) {
	var owners []string
	if err := r.db.WithContext(ctx).Model(&DatasetRecord{}).Distinct().Order("owner").Pluck("owner", &owners).Error; err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

func (r *GormDatasetRepo) Count(ctx context.Context, owner string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&DatasetRecord{})
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count datasets: %w", err)
	}
	return n, nil
}

func (r *GormDatasetRepo) recent(ctx context.Context, owner string) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Order("id DESC")
}
