package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbase/cvsearch/internal/profile"
	"github.com/talentbase/cvsearch/internal/store"
)

// fakeRecords is an in-memory RecordStore with injectable failures.
type fakeRecords struct {
	mu         sync.Mutex
	records    map[string]*profile.Record
	failCreate error
	failDelete error
	creates    int
	deletes    int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: map[string]*profile.Record{}}
}

func (f *fakeRecords) Create(_ context.Context, rec *profile.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		return f.failCreate
	}
	if _, ok := f.records[rec.ID]; ok {
		return store.ErrDuplicateID
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRecords) Read(_ context.Context, id string) (*profile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRecords) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	return ok
}

// fakeAttachments is an in-memory AttachmentStore with injectable failures.
type fakeAttachments struct {
	mu         sync.Mutex
	data       map[string][]byte
	failInsert error
	inserts    int
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{data: map[string][]byte{}}
}

func (f *fakeAttachments) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[id]
	return ok, nil
}

func (f *fakeAttachments) Insert(_ context.Context, id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failInsert != nil {
		return f.failInsert
	}
	if _, ok := f.data[id]; ok {
		return store.ErrDuplicateID
	}
	f.data[id] = data
	return nil
}

func (f *fakeAttachments) Read(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (f *fakeAttachments) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[id]
	return ok
}

func testRecord(id string) *profile.Record {
	return &profile.Record{ID: id, Sections: map[string]any{"nome": "Ada"}}
}

func TestCommit_BothWritten(t *testing.T) {
	records := newFakeRecords()
	attachments := newFakeAttachments()
	c := NewCoordinator(records, attachments, nil)

	err := c.Commit(context.Background(), testRecord("cv-1"), []byte("pdf bytes"))
	require.NoError(t, err)

	assert.True(t, records.has("cv-1"))
	assert.True(t, attachments.has("cv-1"))
}

func TestCommit_AttachmentFailureCompensates(t *testing.T) {
	records := newFakeRecords()
	attachments := newFakeAttachments()
	attachments.failInsert = errors.New("disk full")
	c := NewCoordinator(records, attachments, nil)

	err := c.Commit(context.Background(), testRecord("cv-2"), []byte("pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttachmentWrite)

	// Post-condition: neither half exists.
	assert.False(t, records.has("cv-2"), "record must be removed by compensation")
	assert.False(t, attachments.has("cv-2"))
}

func TestCommit_RecordFailureWritesNothing(t *testing.T) {
	records := newFakeRecords()
	records.failCreate = errors.New("store down")
	attachments := newFakeAttachments()
	c := NewCoordinator(records, attachments, nil)

	err := c.Commit(context.Background(), testRecord("cv-3"), []byte("pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordWrite)

	assert.Zero(t, attachments.inserts, "attachment must not be attempted")
	assert.Zero(t, records.deletes, "nothing to compensate")
}

func TestCommit_CompensationFailureIsIntegrityError(t *testing.T) {
	records := newFakeRecords()
	records.failDelete = errors.New("delete timed out")
	attachments := newFakeAttachments()
	attachments.failInsert = errors.New("disk full")
	c := NewCoordinator(records, attachments, nil)

	err := c.Commit(context.Background(), testRecord("cv-4"), []byte("pdf"))
	require.Error(t, err)

	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "cv-4", ierr.ID)
	assert.NotNil(t, ierr.Cause)
	assert.NotNil(t, ierr.CompensationErr)
}

func TestCommit_IdempotentUnderRetry(t *testing.T) {
	records := newFakeRecords()
	attachments := newFakeAttachments()
	c := NewCoordinator(records, attachments, nil)

	rec := testRecord("cv-5")
	data := []byte("pdf")

	require.NoError(t, c.Commit(context.Background(), rec, data))
	require.NoError(t, c.Commit(context.Background(), rec, data))

	// Second commit skips both writes: one record, one attachment insert.
	assert.Equal(t, 1, attachments.inserts)
	got, err := attachments.Read(context.Background(), "cv-5")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCommit_AtomicityUnderInjectedFailures(t *testing.T) {
	// Property: whatever single write fails, afterwards record and
	// attachment either both exist or both are absent.
	cases := []struct {
		name        string
		recordErr   error
		attachErr   error
		wantPresent bool
	}{
		{name: "no failures", wantPresent: true},
		{name: "record write fails", recordErr: errors.New("boom"), wantPresent: false},
		{name: "attachment write fails", attachErr: errors.New("boom"), wantPresent: false},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := newFakeRecords()
			records.failCreate = tc.recordErr
			attachments := newFakeAttachments()
			attachments.failInsert = tc.attachErr
			c := NewCoordinator(records, attachments, nil)

			id := fmt.Sprintf("cv-atomic-%d", i)
			_ = c.Commit(context.Background(), testRecord(id), []byte("pdf"))

			assert.Equal(t, tc.wantPresent, records.has(id))
			assert.Equal(t, tc.wantPresent, attachments.has(id))
		})
	}
}

func TestCommit_MissingIdentifierRejected(t *testing.T) {
	c := NewCoordinator(newFakeRecords(), newFakeAttachments(), nil)

	err := c.Commit(context.Background(), &profile.Record{Sections: map[string]any{"a": "b"}}, []byte("pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordWrite)
}
