package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"glb-optimizer/internal/metrics"
	"glb-optimizer/internal/models"
	"glb-optimizer/internal/optimization"
)

// fakeOptimizer copies the input to its output path and prints a report.
type fakeOptimizer struct {
	output  string
	err     error
	inputs  []string
	configs []string
}

func (f *fakeOptimizer) Execute(inputPath, config string) (string, error) {
	f.inputs = append(f.inputs, filepath.Base(inputPath))
	f.configs = append(f.configs, config)
	if f.err != nil {
		return "", f.err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(f.output, data[:len(data)/2], 0o644); err != nil {
		return "", err
	}
	return `{"outputPath":"` + f.output + `"}`, nil
}

func (f *fakeOptimizer) OutputPath() string { return f.output }

type memoryRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.Optimization
	failOn  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[uuid.UUID]*models.Optimization)}
}

func (r *memoryRepo) CreateOptimization(o *models.Optimization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return r.failOn
	}
	r.records[o.ID] = o
	return nil
}

func (r *memoryRepo) GetOptimization(id uuid.UUID) (*models.Optimization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *memoryRepo) ListOptimizations() ([]models.Optimization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Optimization, 0, len(r.records))
	for _, o := range r.records {
		out = append(out, *o)
	}
	return out, nil
}

func (r *memoryRepo) DeleteOptimization(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// newFileHeader builds a multipart.FileHeader the way fiber hands it to handlers.
func newFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func newTestService(t *testing.T) (*OptimizationService, *fakeOptimizer, *memoryRepo, *memoryStore) {
	t.Helper()
	opt := &fakeOptimizer{output: filepath.Join(t.TempDir(), optimization.OutputFileName)}
	repo := newMemoryRepo()
	store := newMemoryStore()
	svc := NewOptimizationService(opt, repo, store, metrics.NewMetrics(prometheus.NewRegistry()))
	return svc, opt, repo, store
}

func TestOptimize_StoresOutputAndRecord(t *testing.T) {
	svc, opt, repo, store := newTestService(t)
	fh := newFileHeader(t, "chair.glb", []byte("12345678"))
	lm := metrics.NewLatencyMetrics()

	rec, err := svc.Optimize(context.Background(), fh, `{"draco":false}`, lm)
	require.NoError(t, err)

	assert.Equal(t, "chair.glb", rec.OriginalFilename)
	assert.Equal(t, int64(8), rec.InputSize)
	assert.Equal(t, int64(4), rec.OutputSize)
	assert.Equal(t, `{"draco":false}`, rec.Config)
	assert.Equal(t, `{"outputPath":"`+opt.output+`"}`, rec.Report)
	assert.Equal(t, rec.ID.String()+".glb", rec.StorageKey)
	assert.Equal(t, "model/gltf-binary", rec.ContentType)

	assert.Equal(t, []byte("1234"), store.objects[rec.StorageKey])
	assert.Contains(t, repo.records, rec.ID)

	// The shared output file is consumed by the upload.
	_, err = os.Stat(opt.output)
	assert.True(t, os.IsNotExist(err))

	_, ok := lm.Stage(metrics.StageOptimize)
	assert.True(t, ok)
	assert.Equal(t, int64(8), lm.InputSize)
}

func TestOptimize_BlankConfigUsesDefaults(t *testing.T) {
	svc, opt, _, _ := newTestService(t)

	_, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.glb", []byte("abcd")), "  ", nil)
	require.NoError(t, err)
	require.Len(t, opt.configs, 1)
	assert.Equal(t, models.DefaultSettings().JSON(), opt.configs[0])
}

func TestOptimize_KeepsUploadExtension(t *testing.T) {
	svc, opt, _, _ := newTestService(t)
	opt.err = optimization.ErrNotGLB

	_, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.GLB", []byte("abcd")), `{}`, nil)
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
	require.Len(t, opt.inputs, 1)
	assert.Equal(t, ".GLB", filepath.Ext(opt.inputs[0]))
}

func TestOptimize_OptimizerErrorIsReturnedUntouched(t *testing.T) {
	svc, opt, repo, store := newTestService(t)
	scriptErr := errors.Join(optimization.ErrScriptFailed, errors.New("boom"))
	opt.err = scriptErr

	_, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.glb", []byte("abcd")), `{}`, nil)
	assert.Same(t, scriptErr, err)
	assert.Equal(t, metrics.OutcomeScriptError, Outcome(err))
	assert.Empty(t, repo.records)
	assert.Empty(t, store.objects)
}

func TestOptimize_Archive(t *testing.T) {
	svc, opt, _, _ := newTestService(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("scene/chair.glb")
	require.NoError(t, err)
	_, err = w.Write([]byte("glTFglTF"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rec, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.zip", buf.Bytes()), `{}`, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"chair.glb"}, opt.inputs)
	assert.Equal(t, int64(8), rec.InputSize)
}

func TestOptimize_ArchiveWithoutModel(t *testing.T) {
	svc, opt, _, _ := newTestService(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("readme.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = svc.Optimize(context.Background(), newFileHeader(t, "bundle.zip", buf.Bytes()), `{}`, nil)
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
	assert.Empty(t, opt.inputs)
}

func TestOptimize_DatabaseFailureRemovesObject(t *testing.T) {
	svc, _, repo, store := newTestService(t)
	repo.failOn = errors.New("connection refused")

	_, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.glb", []byte("abcd")), `{}`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, store.objects)
}

// copyingOptimizer writes the whole input to the shared output path and
// lingers before returning, so overlapping runs would clobber each other.
type copyingOptimizer struct {
	output    string
	running   atomic.Int32
	maxActive atomic.Int32
}

func (o *copyingOptimizer) Execute(inputPath, _ string) (string, error) {
	n := o.running.Add(1)
	defer o.running.Add(-1)
	for {
		cur := o.maxActive.Load()
		if n <= cur || o.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(o.output, data, 0o644); err != nil {
		return "", err
	}
	time.Sleep(5 * time.Millisecond)
	return "{}", nil
}

func (o *copyingOptimizer) OutputPath() string { return o.output }

func TestOptimize_ConcurrentRunsKeepTheirOwnOutput(t *testing.T) {
	opt := &copyingOptimizer{output: filepath.Join(t.TempDir(), optimization.OutputFileName)}
	store := newMemoryStore()
	svc := NewOptimizationService(opt, newMemoryRepo(), store, nil)

	const runs = 8
	headers := make([]*multipart.FileHeader, runs)
	for i := range headers {
		headers[i] = newFileHeader(t, "chair.glb", []byte("model-"+string(rune('a'+i))))
	}

	recs := make([]*models.Optimization, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := range headers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = svc.Optimize(context.Background(), headers[i], `{}`, nil)
		}(i)
	}
	wg.Wait()

	for i := range recs {
		require.NoError(t, errs[i])
		assert.Equal(t, "model-"+string(rune('a'+i)), string(store.objects[recs[i].StorageKey]))
	}
	assert.Equal(t, int32(1), opt.maxActive.Load())
}

func TestDeleteOptimization(t *testing.T) {
	svc, _, repo, store := newTestService(t)
	rec, err := svc.Optimize(context.Background(), newFileHeader(t, "chair.glb", []byte("abcd")), `{}`, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOptimization(context.Background(), rec.ID))
	assert.Empty(t, repo.records)
	assert.Empty(t, store.objects)

	err = svc.DeleteOptimization(context.Background(), rec.ID)
	assert.True(t, IsNotFound(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, Outcome(nil))
	assert.Equal(t, metrics.OutcomeInputError, Outcome(optimization.ErrInvalidConfig))
	assert.Equal(t, metrics.OutcomeEnvError, Outcome(optimization.ErrSpawn))
	assert.Equal(t, metrics.OutcomeEnvError, Outcome(optimization.ErrScriptNotFound))
	assert.Equal(t, metrics.OutcomeStoreError, Outcome(ErrStorage))
}
