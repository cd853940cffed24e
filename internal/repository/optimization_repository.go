package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"glb-optimizer/internal/models"
)

// OptimizationRepository defines methods for persisting optimization runs.
type OptimizationRepository interface {
	CreateOptimization(optimization *models.Optimization) error
	GetOptimization(id uuid.UUID) (*models.Optimization, error)
	ListOptimizations() ([]models.Optimization, error)
	DeleteOptimization(id uuid.UUID) error
}

// OptimizationRepositoryImpl provides methods to interact with the Optimization model in the database.
type OptimizationRepositoryImpl struct {
	db *gorm.DB
}

// NewOptimizationRepository creates a new OptimizationRepositoryImpl with the provided GORM database connection.
func NewOptimizationRepository(db *gorm.DB) *OptimizationRepositoryImpl {
	return &OptimizationRepositoryImpl{db: db}
}

// Migrate creates or updates the optimizations table.
func (r *OptimizationRepositoryImpl) Migrate() error {
	return r.db.AutoMigrate(&models.Optimization{})
}

// CreateOptimization inserts a new run record.
func (r *OptimizationRepositoryImpl) CreateOptimization(optimization *models.Optimization) error {
	return r.db.Create(optimization).Error
}

// GetOptimization retrieves a run by its ID. A missing row yields gorm.ErrRecordNotFound.
func (r *OptimizationRepositoryImpl) GetOptimization(id uuid.UUID) (*models.Optimization, error) {
	var optimization models.Optimization
	if err := r.db.First(&optimization, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &optimization, nil
}

// ListOptimizations retrieves all runs, newest first.
func (r *OptimizationRepositoryImpl) ListOptimizations() ([]models.Optimization, error) {
	var optimizations []models.Optimization
	err := r.db.Order("created_at desc").Find(&optimizations).Error
	return optimizations, err
}

// DeleteOptimization deletes a run by its ID.
func (r *OptimizationRepositoryImpl) DeleteOptimization(id uuid.UUID) error {
	res := r.db.Delete(&models.Optimization{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
