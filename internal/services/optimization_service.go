package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"glb-optimizer/internal/extraction"
	"glb-optimizer/internal/metrics"
	"glb-optimizer/internal/models"
	"glb-optimizer/internal/optimization"
	"glb-optimizer/internal/repository"
	"glb-optimizer/internal/storage"
)

const glbContentType = "model/gltf-binary"

// ErrStorage marks failures that happened after the optimizer succeeded,
// while storing its output or recording the run.
var ErrStorage = errors.New("storage error")

// Optimizer runs a single optimization and reports where it wrote the output.
type Optimizer interface {
	Execute(inputPath, config string) (string, error)
	OutputPath() string
}

// OptimizationService turns uploaded models into stored, optimized GLB files.
type OptimizationService struct {
	Optimizer Optimizer
	Repo      repository.OptimizationRepository
	Store     storage.ObjectStore
	Metrics   *metrics.Metrics

	// The optimizer writes every run to the same output file, so runs are
	// serialized until that file has been uploaded.
	mu sync.Mutex
}

// NewOptimizationService creates a new OptimizationService. m may be nil.
func NewOptimizationService(optimizer Optimizer, repo repository.OptimizationRepository, store storage.ObjectStore, m *metrics.Metrics) *OptimizationService {
	return &OptimizationService{
		Optimizer: optimizer,
		Repo:      repo,
		Store:     store,
		Metrics:   m,
	}
}

// Optimize spools the upload, runs the optimizer on it, stores the result
// and records the run. A blank config is replaced by the default settings.
// Stage timings are recorded in lm.
func (s *OptimizationService) Optimize(ctx context.Context, fileHeader *multipart.FileHeader, config string, lm *metrics.LatencyMetrics) (*models.Optimization, error) {
	if lm == nil {
		lm = metrics.NewLatencyMetrics()
	}
	if strings.TrimSpace(config) == "" {
		config = models.DefaultSettings().JSON()
	}

	rec, err := s.optimize(ctx, fileHeader, config, lm)
	lm.Finalize()
	if s.Metrics != nil {
		s.Metrics.IncrementRuns(Outcome(err))
		s.Metrics.Observe(lm)
	}
	return rec, err
}

func (s *OptimizationService) optimize(ctx context.Context, fileHeader *multipart.FileHeader, config string, lm *metrics.LatencyMetrics) (*models.Optimization, error) {
	lm.Start(metrics.StageSpool)
	inputPath, err := spoolUpload(fileHeader)
	lm.End(metrics.StageSpool)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputPath)

	if extraction.IsArchive(fileHeader.Filename) {
		lm.Start(metrics.StageExtract)
		glbPath, destDir, err := extraction.ExtractGLB(ctx, inputPath)
		lm.End(metrics.StageExtract)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(destDir)
		inputPath = glbPath
	}

	inputSize, err := fileSize(inputPath)
	if err != nil {
		return nil, err
	}

	objectID := uuid.New()
	objectKey := objectID.String() + ".glb"

	s.mu.Lock()
	lm.Start(metrics.StageOptimize)
	report, err := s.Optimizer.Execute(inputPath, config)
	lm.End(metrics.StageOptimize)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	lm.Start(metrics.StageUpload)
	outputSize, err := s.uploadOutput(ctx, objectKey)
	lm.End(metrics.StageUpload)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	lm.SetSizes(inputSize, outputSize)

	duration, _ := lm.Stage(metrics.StageOptimize)
	rec := &models.Optimization{
		ID:               objectID,
		OriginalFilename: fileHeader.Filename,
		ContentType:      glbContentType,
		InputSize:        inputSize,
		OutputSize:       outputSize,
		Config:           config,
		Report:           report,
		StorageKey:       objectKey,
		DurationMs:       int64(duration),
		CreatedAt:        time.Now(),
	}

	lm.Start(metrics.StagePersist)
	err = s.Repo.CreateOptimization(rec)
	lm.End(metrics.StagePersist)
	if err != nil {
		// If DB save fails, remove the object from storage to avoid orphan file
		_ = s.Store.Remove(ctx, objectKey)
		return nil, fmt.Errorf("%w: %v", ErrStorage, errors.Wrap(err, "failed to save metadata to database"))
	}
	return rec, nil
}

// uploadOutput stores the optimizer's output file under key and removes it.
// The caller holds s.mu.
func (s *OptimizationService) uploadOutput(ctx context.Context, key string) (int64, error) {
	outputPath := s.Optimizer.OutputPath()
	glbFile, err := os.Open(outputPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, errors.Wrap(err, "could not open optimized glb file"))
	}
	defer os.Remove(outputPath)
	defer glbFile.Close()

	stat, err := glbFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, errors.Wrap(err, "could not stat optimized glb file"))
	}
	if err := s.Store.Put(ctx, key, glbFile, stat.Size(), glbContentType); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return stat.Size(), nil
}

// GetOptimization retrieves a run record by ID.
func (s *OptimizationService) GetOptimization(id uuid.UUID) (*models.Optimization, error) {
	return s.Repo.GetOptimization(id)
}

// ListOptimizations returns all run records.
func (s *OptimizationService) ListOptimizations() ([]models.Optimization, error) {
	return s.Repo.ListOptimizations()
}

// DeleteOptimization removes a run record and its stored output.
func (s *OptimizationService) DeleteOptimization(ctx context.Context, id uuid.UUID) error {
	rec, err := s.Repo.GetOptimization(id)
	if err != nil {
		return err
	}
	if err := s.Store.Remove(ctx, rec.StorageKey); err != nil {
		log.Printf("Failed to remove stored output: ID=%s, StorageKey=%s, Error=%v", id, rec.StorageKey, err)
	}
	return s.Repo.DeleteOptimization(id)
}

// OpenOutput streams the optimized GLB stored for rec.
func (s *OptimizationService) OpenOutput(ctx context.Context, rec *models.Optimization) (io.ReadCloser, error) {
	return s.Store.Get(ctx, rec.StorageKey)
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsBadRequest reports whether err was caused by the uploaded file or config.
func IsBadRequest(err error) bool {
	return optimization.IsInputError(err) ||
		errors.Is(err, extraction.ErrNoModel) ||
		errors.Is(err, extraction.ErrMultipleModels)
}

// Outcome classifies err for the run counter.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case IsBadRequest(err):
		return metrics.OutcomeInputError
	case errors.Is(err, optimization.ErrScriptFailed):
		return metrics.OutcomeScriptError
	case errors.Is(err, ErrStorage):
		return metrics.OutcomeStoreError
	default:
		return metrics.OutcomeEnvError
	}
}

// spoolUpload saves the uploaded file to a temporary location, keeping its extension.
func spoolUpload(fileHeader *multipart.FileHeader) (string, error) {
	srcFile, err := fileHeader.Open()
	if err != nil {
		return "", errors.Wrap(err, "could not open uploaded file")
	}
	defer srcFile.Close()

	ext := filepath.Ext(filepath.Base(fileHeader.Filename))
	tempFile, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", errors.Wrap(err, "could not create temporary file")
	}
	tempPath := tempFile.Name()
	_, err = io.Copy(tempFile, srcFile)
	tempFile.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", errors.Wrap(err, "failed to write uploaded file")
	}
	return tempPath, nil
}

func fileSize(path string) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "could not stat input file")
	}
	return stat.Size(), nil
}
