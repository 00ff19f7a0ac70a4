package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	psqlrepo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/psql"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

const sampleCSV = `name,category,flowrate,pressure,temperature
Pump-1,Pump,10,2,300
Valve-1,Valve,20,4,310
Pump-2,Pump,15,3,305
`

type fakeCache struct {
	mu      sync.Mutex
	latest  map[string]entity.DatasetSummary
	getErr  error
	setErr  error
	dropped []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{latest: make(map[string]entity.DatasetSummary)}
}

func (c *fakeCache) GetLatest(_ context.Context, owner string) (*entity.DatasetSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.latest[owner]
	if !ok {
		return nil, entity.ErrCacheMiss
	}
	return &s, nil
}

func (c *fakeCache) SetLatest(_ context.Context, s *entity.DatasetSummary) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return false, c.setErr
	}
	c.latest[s.Owner] = *s
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, owners ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range owners {
		delete(c.latest, o)
		c.dropped = append(c.dropped, o)
	}
	return nil
}

type fakeStorage struct {
	mu         sync.Mutex
	archived   map[uuid.UUID][]byte
	reports    map[uuid.UUID][]byte
	deleted    []entity.DatasetRef
	archiveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{archived: make(map[uuid.UUID][]byte), reports: make(map[uuid.UUID][]byte)}
}

func (s *fakeStorage) ArchiveUpload(_ context.Context, _ string, id uuid.UUID, _ string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archiveErr != nil {
		return s.archiveErr
	}
	s.archived[id] = raw
	return nil
}

func (s *fakeStorage) PutReport(_ context.Context, _ string, id uuid.UUID, pdf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = pdf
	return nil
}

func (s *fakeStorage) ReportURL(_ context.Context, owner string, id uuid.UUID, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return "", entity.ErrObjectNotFound
	}
	return fmt.Sprintf("https://objects.local/reports/%s/%s.pdf", owner, id), nil
}

func (s *fakeStorage) DeleteDataset(_ context.Context, owner string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, entity.DatasetRef{ID: id, Owner: owner})
	delete(s.archived, id)
	delete(s.reports, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	bodies   []json.RawMessage
}

func (p *fakePublisher) Publish(_ context.Context, body json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unreachable")
	}
	p.bodies = append(p.bodies, body)
	return nil
}

type fakeRenderer struct{ calls int }

func (r *fakeRenderer) Render(s entity.DatasetSummary) ([]byte, error) {
	r.calls++
	return []byte("%PDF-" + s.ID.String()), nil
}

type fixture struct {
	uc       *DatasetUseCase
	repo     *psqlrepo.GormDatasetRepo
	cache    *fakeCache
	storage  *fakeStorage
	pub      *fakePublisher
	renderer *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	next := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next = next.Add(time.Second)
		return next
	}

	repo := psqlrepo.NewGormDatasetRepo(db, psqlrepo.WithClock(clock))
	require.NoError(t, repo.Migrate())

	f := &fixture{
		repo:     repo,
		cache:    newFakeCache(),
		storage:  newFakeStorage(),
		pub:      &fakePublisher{},
		renderer: &fakeRenderer{},
	}
	f.uc = NewDatasetUseCase(repo, f.cache, f.storage, f.pub, f.renderer, entity.DefaultRetentionLimit)
	f.uc.retryBaseDelay = time.Millisecond
	return f
}

func TestIngestStoresSummaryAndRunsSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.uc.Ingest(ctx, "alice", "plant.csv", []byte(sampleCSV))
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, "alice", s.Owner)
	assert.Equal(t, 3, s.RowCount)
	assert.InEpsilon(t, 15.0, s.Means.Flowrate, 1e-9)
	assert.InEpsilon(t, 3.0, s.Means.Pressure, 1e-9)
	assert.InEpsilon(t, 305.0, s.Means.Temperature, 1e-9)
	assert.Equal(t, entity.CategoryCounts{"Pump": 2, "Valve": 1}, s.CategoryCounts)
	assert.Len(t, res.Rows, 3)
	assert.Empty(t, res.Evicted)

	assert.Equal(t, s.ID, f.cache.latest["alice"].ID)
	assert.Equal(t, []byte(sampleCSV), f.storage.archived[s.ID])

	require.Len(t, f.pub.bodies, 1)
	msg, err := utils.FromRawMessage[entity.DatasetIngestedMessage](f.pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, s.ID.String(), msg.DatasetID)
	assert.Equal(t, "alice", msg.Owner)
}

func TestIngestRejectsBadInputWithoutPersisting(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		owner string
		raw   string
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing owner",
			owner: "",
			raw:   sampleCSV,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, entity.ErrMissingOwner) },
		},
		{
			name:  "missing column",
			owner: "alice",
			raw:   "name,category,flowrate,pressure\nP,Pump,1,2\n",
			check: func(t *testing.T, err error) {
				var schemaErr *entity.SchemaError
				require.ErrorAs(t, err, &schemaErr)
				assert.Equal(t, []string{"temperature"}, schemaErr.Missing)
			},
		},
		{
			name:  "header only",
			owner: "alice",
			raw:   "name,category,flowrate,pressure,temperature\n",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, entity.ErrEmptyInput) },
		},
		{
			name:  "non numeric",
			owner: "alice",
			raw:   "name,category,flowrate,pressure,temperature\nP,Pump,fast,2,3\n",
			check: func(t *testing.T, err error) { assert.True(t, entity.IsInputError(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.uc.Ingest(ctx, tt.owner, "bad.csv", []byte(tt.raw))
			require.Error(t, err)
			tt.check(t, err)

			n, err := f.repo.Count(ctx, "")
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Empty(t, f.storage.archived)
			assert.Zero(t, f.pub.calls)
		})
	}
}

func TestIngestSurvivesSideEffectFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cache.setErr = errors.New("redis down")
	f.storage.archiveErr = errors.New("s3 down")
	f.pub.failures = 100

	res, err := f.uc.Ingest(ctx, "alice", "plant.csv", []byte(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 5, f.pub.calls)

	stored, err := f.repo.Get(ctx, "alice", res.Summary.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Summary.ID, stored.ID)
}

func TestPublishRetriesUntilBrokerRecovers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pub.failures = 2

	_, err := f.uc.Ingest(ctx, "alice", "plant.csv", []byte(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, f.pub.calls)
	assert.Len(t, f.pub.bodies, 1)
}

func TestIngestEvictsBeyondWindowAndCleansObjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []uuid.UUID
	for i := 0; i < 7; i++ {
		res, err := f.uc.Ingest(ctx, "alice", fmt.Sprintf("u%d.csv", i), []byte(sampleCSV))
		require.NoError(t, err)
		ids = append(ids, res.Summary.ID)
	}

	history, err := f.uc.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, entity.DefaultRetentionLimit)
	assert.Equal(t, ids[6], history[0].ID)
	assert.Equal(t, ids[2], history[4].ID)

	assert.ElementsMatch(t, []entity.DatasetRef{
		{ID: ids[0], Owner: "alice"},
		{ID: ids[1], Owner: "alice"},
	}, f.storage.deleted)
	assert.NotContains(t, f.storage.archived, ids[0])
}

func TestLatestUsesCacheThenStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.uc.Latest(ctx, "alice")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	res, err := f.uc.Ingest(ctx, "alice", "plant.csv", []byte(sampleCSV))
	require.NoError(t, err)

	delete(f.cache.latest, "alice")
	got, err := f.uc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, res.Summary.ID, got.ID)
	assert.Equal(t, res.Summary.ID, f.cache.latest["alice"].ID, "store hit repopulates the cache")

	f.cache.getErr = errors.New("redis down")
	got, err = f.uc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, res.Summary.ID, got.ID)
}

func TestHistoryForUnknownOwnerIsEmpty(t *testing.T) {
	f := newFixture(t)

	history, err := f.uc.History(context.Background(), "nobody", 3)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestReportPrefersStoredObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.uc.Ingest(ctx, "alice", "plant.csv", []byte(sampleCSV))
	require.NoError(t, err)

	report, err := f.uc.Report(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, report.URL)
	assert.Equal(t, []byte("%PDF-"+res.Summary.ID.String()), report.PDF)
	assert.Equal(t, 1, f.renderer.calls)

	require.NoError(t, f.storage.PutReport(ctx, "alice", res.Summary.ID, []byte("%PDF")))
	id := res.Summary.ID
	report, err = f.uc.Report(ctx, "alice", &id)
	require.NoError(t, err)
	assert.Contains(t, report.URL, id.String())
	assert.Nil(t, report.PDF)
	assert.Equal(t, 1, f.renderer.calls)

	other := uuid.New()
	_, err = f.uc.Report(ctx, "alice", &other)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPruneInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		for _, owner := range []string{"alice", "bob"} {
			_, err := f.uc.Ingest(ctx, owner, "x.csv", []byte(sampleCSV))
			require.NoError(t, err)
		}
	}

	evicted, err := f.uc.PruneAll(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, evicted, 2)
	assert.ElementsMatch(t, []string{"alice", "bob"}, f.cache.dropped)

	evicted, err = f.uc.PruneGlobal(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, evicted, 3)

	n, err := f.repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.uc.Latest(ctx, "alice")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	latest, err := f.uc.Latest(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", latest.Owner)

	evicted, err = f.uc.Prune(ctx, "bob", 1)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
