package stream

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// fakeKV implements the KV slice the report store uses, backed by a map.
type fakeKV struct {
	entries map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: make(map[string][]byte)}
}

func (f *fakeKV) Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	if _, ok := f.entries[key]; ok {
		return 0, fmt.Errorf("%w: key %q", jetstream.ErrKeyExists, key)
	}
	f.entries[key] = value
	return uint64(len(f.entries)), nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	value, ok := f.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: value}, nil
}

func (f *fakeKV) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	ch := make(chan string, len(f.entries))
	for key := range f.entries {
		ch <- key
	}
	close(ch)
	return fakeLister{ch: ch}, nil
}

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

type fakeLister struct {
	ch chan string
}

func (l fakeLister) Keys() <-chan string { return l.ch }
func (l fakeLister) Stop() error         { return nil }

func TestReportStoreSaveAndGet(t *testing.T) {
	store := &ReportStore{kv: newFakeKV()}
	ctx := context.Background()

	rep := constraint.ComplianceReport{
		RunID:          "run-1",
		OverallStrict:  0.8,
		OverallRelaxed: 0.9,
		TotalSpec:      5,
	}
	require.NoError(t, store.Save(ctx, rep))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	assert.Equal(t, rep.OverallStrict, got.OverallStrict)
	assert.Equal(t, rep.TotalSpec, got.TotalSpec)
}

func TestReportStoreSaveIsWriteOnce(t *testing.T) {
	store := &ReportStore{kv: newFakeKV()}
	ctx := context.Background()

	rep := constraint.ComplianceReport{RunID: "run-1", OverallStrict: 0.8}
	require.NoError(t, store.Save(ctx, rep))

	// A second save under the same run ID must not overwrite the
	// archived report.
	rep.OverallStrict = 0.2
	assert.Error(t, store.Save(ctx, rep))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.OverallStrict)
}

func TestReportStoreSaveRequiresRunID(t *testing.T) {
	store := &ReportStore{kv: newFakeKV()}
	assert.Error(t, store.Save(context.Background(), constraint.ComplianceReport{}))
}

func TestReportStoreGetNotFound(t *testing.T) {
	store := &ReportStore{kv: newFakeKV()}
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReportStoreList(t *testing.T) {
	store := &ReportStore{kv: newFakeKV()}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, constraint.ComplianceReport{RunID: "run-1"}))
	require.NoError(t, store.Save(ctx, constraint.ComplianceReport{RunID: "run-2"}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, ids)
}
