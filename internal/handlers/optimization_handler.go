package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"glb-optimizer/internal/metrics"
	"glb-optimizer/internal/models"
	"glb-optimizer/internal/optimization"
	"glb-optimizer/internal/services"
)

const InvalidUuidError = "invalid UUID"
const OptimizationNotFoundError = "optimization not found"

// OptimizationAPI is the part of services.OptimizationService the handlers use.
type OptimizationAPI interface {
	Optimize(ctx context.Context, fileHeader *multipart.FileHeader, config string, lm *metrics.LatencyMetrics) (*models.Optimization, error)
	GetOptimization(id uuid.UUID) (*models.Optimization, error)
	ListOptimizations() ([]models.Optimization, error)
	DeleteOptimization(ctx context.Context, id uuid.UUID) error
	OpenOutput(ctx context.Context, rec *models.Optimization) (io.ReadCloser, error)
}

// OptimizationHandler defines handlers for optimization runs.
type OptimizationHandler struct {
	Service OptimizationAPI
	Metrics *metrics.Metrics
}

// NewOptimizationHandler creates a new OptimizationHandler. m may be nil.
func NewOptimizationHandler(service OptimizationAPI, m *metrics.Metrics) *OptimizationHandler {
	return &OptimizationHandler{Service: service, Metrics: m}
}

// optimizeStatus maps an Optimize error to an HTTP status code.
func optimizeStatus(err error) int {
	switch {
	case services.IsBadRequest(err):
		return fiber.StatusBadRequest
	case errors.Is(err, optimization.ErrScriptFailed):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// Optimize handles POST /optimize to optimize an uploaded model.
// @Summary Optimize a GLB model
// @Description Upload a .glb file (or an archive holding exactly one) and optimize it with the given settings
// @Tags optimizations
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "GLB file or archive"
// @Param config formData string false "Optimization settings as JSON (defaults apply when empty)"
// @Success 200 {object} map[string]interface{} "Report printed by the optimization script"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} map[string]interface{} "Optimization script failed"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /optimize [post]
func (h *OptimizationHandler) Optimize(c *fiber.Ctx) error {
	log.Printf("Optimizing model - Method: %s, Path: %s, IP: %s", c.Method(), c.Path(), c.IP())
	if h.Metrics != nil {
		defer h.Metrics.TrackInFlight()()
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Printf("Failed to read file: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "failed to read file: " + err.Error(),
		})
	}
	log.Printf("Processing upload: %s (%d bytes)", fileHeader.Filename, fileHeader.Size)

	lm := metrics.NewLatencyMetrics()
	rec, err := h.Service.Optimize(c.UserContext(), fileHeader, c.FormValue("config"), lm)
	for k, v := range lm.GetHeaders() {
		c.Set(k, v)
	}
	if err != nil {
		status := optimizeStatus(err)
		log.Printf("Optimization failed: File=%s, Status=%d, Error=%v", fileHeader.Filename, status, err)
		return c.Status(status).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}

	log.Printf("Successfully optimized model: ID=%s, Name=%s, InputSize=%d, OutputSize=%d, Duration=%dms",
		rec.ID, rec.OriginalFilename, rec.InputSize, rec.OutputSize, rec.DurationMs)
	c.Set("X-Optimization-ID", rec.ID.String())
	c.Set("X-Optimization-Duration-Ms", strconv.FormatInt(rec.DurationMs, 10))
	c.Type("json")
	return c.Status(fiber.StatusOK).SendString(rec.Report)
}

// ListOptimizations handles GET /optimizations to retrieve all runs.
// @Summary List optimization runs
// @Description Gets all recorded optimization runs, newest first
// @Tags optimizations
// @Produce json
// @Success 200 {array} models.Optimization "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /optimizations [get]
func (h *OptimizationHandler) ListOptimizations(c *fiber.Ctx) error {
	list, err := h.Service.ListOptimizations()
	if err != nil {
		log.Printf("Error listing optimizations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Successfully listed %d optimizations", len(list))
	return c.JSON(list)
}

// lookup parses the :id param and loads its record, writing the error
// response itself when it returns a nil record.
func (h *OptimizationHandler) lookup(c *fiber.Ctx) (*models.Optimization, error) {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("Invalid UUID format: %s - Error: %v", idStr, err)
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}

	rec, err := h.Service.GetOptimization(id)
	if err != nil {
		if services.IsNotFound(err) {
			log.Printf("Optimization not found: ID=%s", id)
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": OptimizationNotFoundError,
			})
		}
		log.Printf("Error fetching optimization: ID=%s, Error=%v", id, err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	return rec, nil
}

// GetOptimization handles GET /optimizations/:id to retrieve one run.
// @Summary Get an optimization run by ID
// @Tags optimizations
// @Produce json
// @Param id path string true "Optimization ID"
// @Success 200 {object} models.Optimization "Run found"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Optimization not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /optimizations/{id} [get]
func (h *OptimizationHandler) GetOptimization(c *fiber.Ctx) error {
	log.Printf("Getting optimization - ID: %s, Method: %s, Path: %s, IP: %s", c.Params("id"), c.Method(), c.Path(), c.IP())
	rec, err := h.lookup(c)
	if rec == nil {
		return err
	}
	return c.JSON(rec)
}

// DeleteOptimization handles DELETE /optimizations/:id.
// @Summary Delete an optimization run
// @Description Delete a run record and its stored output
// @Tags optimizations
// @Param id path string true "Optimization ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Optimization not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /optimizations/{id} [delete]
func (h *OptimizationHandler) DeleteOptimization(c *fiber.Ctx) error {
	idStr := c.Params("id")
	log.Printf("Deleting optimization - ID: %s, Method: %s, Path: %s, IP: %s", idStr, c.Method(), c.Path(), c.IP())
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("Invalid UUID format for delete: %s - Error: %v", idStr, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	if err := h.Service.DeleteOptimization(c.UserContext(), id); err != nil {
		if services.IsNotFound(err) {
			log.Printf("Optimization not found for delete: ID=%s", id)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": OptimizationNotFoundError,
			})
		}
		log.Printf("Error deleting optimization: ID=%s, Error=%v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Successfully deleted optimization: ID=%s", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// DownloadOptimization handles GET /optimizations/:id/download to stream the optimized GLB.
// @Summary Download an optimized GLB
// @Tags optimizations
// @Produce application/octet-stream
// @Param id path string true "Optimization ID"
// @Success 200 {file} binary "Optimized GLB file"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Optimization not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /optimizations/{id}/download [get]
func (h *OptimizationHandler) DownloadOptimization(c *fiber.Ctx) error {
	log.Printf("Downloading optimization - ID: %s, Method: %s, Path: %s, IP: %s", c.Params("id"), c.Method(), c.Path(), c.IP())
	rec, err := h.lookup(c)
	if rec == nil {
		return err
	}

	object, err := h.Service.OpenOutput(c.UserContext(), rec)
	if err != nil {
		log.Printf("Failed to retrieve file from storage: StorageKey=%s, Error=%v", rec.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "unable to retrieve file",
		})
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		log.Printf("Failed to read object data: StorageKey=%s, Error=%v", rec.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "failed to read object data",
		})
	}

	log.Printf("Successfully retrieved file: ID=%s, Size=%d bytes", rec.ID, len(data))
	c.Set(fiber.HeaderContentType, rec.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\""+rec.ID.String()+".glb\"")
	return c.Status(fiber.StatusOK).Send(data)
}

// DefaultSettings handles GET /settings/default.
// @Summary Default optimization settings
// @Description Settings applied when an optimize request carries no config
// @Tags settings
// @Produce json
// @Success 200 {object} models.Settings
// @Router /settings/default [get]
func DefaultSettings(c *fiber.Ctx) error {
	return c.JSON(models.DefaultSettings())
}
