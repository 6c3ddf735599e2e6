package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/traverseglobe/quotation-backend/pkg/migrate"
	"github.com/traverseglobe/quotation-backend/pkg/redis"
)

func sampleDocument(t *testing.T, guest string) []byte {
	t.Helper()
	q := Default()
	q.GuestName = guest
	q.SelectedActivities = []Activity{{ID: "a1", Location: "Dubai", CostAED: 100}}
	q = q.withDerived(0.05)
	data, err := encodeDocument(q, false)
	require.NoError(t, err)
	return data
}

func TestMemoryStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	data, err := s.Load(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, data)

	doc := []byte(`{"a":1}`)
	require.NoError(t, s.Save(ctx, "k", doc))
	doc[2] = 'b'

	data, err = s.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, s.Delete(ctx, "k"))
	data, err = s.Load(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, data)
}

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrNil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeRedis) QuotationKey(storageKey string) string {
	return "tq:quotation:" + storageKey
}

func TestRedisStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	s, err := NewRedisStorage(client)
	require.NoError(t, err)
	require.Equal(t, "redis", s.Name())

	data, err := s.Load(ctx, "quotationFormState")
	require.NoError(t, err)
	require.Nil(t, data)

	doc := sampleDocument(t, "Ana")
	require.NoError(t, s.Save(ctx, "quotationFormState", doc))
	require.Contains(t, client.values, "tq:quotation:quotationFormState")
	require.Zero(t, client.ttls["tq:quotation:quotationFormState"])

	data, err = s.Load(ctx, "quotationFormState")
	require.NoError(t, err)
	require.JSONEq(t, string(doc), string(data))

	require.NoError(t, s.Delete(ctx, "quotationFormState"))
	data, err = s.Load(ctx, "quotationFormState")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestRedisStorageWrapsErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	s, err := NewRedisStorage(client)
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "k")
	require.ErrorContains(t, err, "connection refused")
	require.Error(t, s.Save(context.Background(), "k", []byte("{}")))

	_, err = NewRedisStorage(nil)
	require.Error(t, err)
}

func openSQLStorage(t *testing.T) (*SQLStorage, *gorm.DB) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite", "../../pkg/migrate/migrations", "up"))

	s, err := NewSQLStorage(conn)
	require.NoError(t, err)
	return s, conn
}

func TestSQLStorageUpsertsDocuments(t *testing.T) {
	ctx := context.Background()
	s, conn := openSQLStorage(t)

	data, err := s.Load(ctx, "session:1")
	require.NoError(t, err)
	require.Nil(t, data)

	first := sampleDocument(t, "First")
	require.NoError(t, s.Save(ctx, "session:1", first))
	second := sampleDocument(t, "Second")
	require.NoError(t, s.Save(ctx, "session:1", second))

	data, err = s.Load(ctx, "session:1")
	require.NoError(t, err)
	require.JSONEq(t, string(second), string(data))

	var rec documentRecord
	require.NoError(t, conn.Where("storage_key = ?", "session:1").Take(&rec).Error)
	require.Equal(t, SchemaVersion, rec.SchemaVersion)
	// 100 AED × 2 adults + visa 295 × 2
	require.True(t, rec.FinalTotal.Equal(decimal.NewFromInt(790)), "final total %s", rec.FinalTotal)

	var count int64
	require.NoError(t, conn.Model(&documentRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, s.Delete(ctx, "session:1"))
	data, err = s.Load(ctx, "session:1")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestSQLStorageRejectsNonJSON(t *testing.T) {
	s, _ := openSQLStorage(t)
	require.Error(t, s.Save(context.Background(), "k", []byte("not json")))
}

func TestContainerPersistsThroughSQLStorage(t *testing.T) {
	s, _ := openSQLStorage(t)
	sched := &manualScheduler{}
	c, err := New(context.Background(), Params{Storage: s, Scheduler: sched, Config: Config{StorageKey: "sql-session"}})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.UpdateBasicDetails(BasicDetails{GuestName: ptr("Persisted")}))
	sched.Advance(30 * time.Second)
	require.True(t, c.Status().Saved)

	data, err := s.Load(context.Background(), "sql-session")
	require.NoError(t, err)
	var q Quotation
	require.NoError(t, json.Unmarshal(data, &q))
	require.Equal(t, "Persisted", q.GuestName)
}
