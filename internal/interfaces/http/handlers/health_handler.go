package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sharedcookie/internal/application/dto"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/internal/interfaces/http/middleware"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// KeyRingStatus is the read side of the key ring the readiness probe needs.
type KeyRingStatus interface {
	Loaded() (bool, time.Time)
	CurrentKey() (*models.KeyEntry, error)
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	ring  KeyRingStatus
	store repository.KeyStore
	clock service.Clock
	log   logger.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(ring KeyRingStatus, store repository.KeyStore, clock service.Clock, log logger.Logger) *HealthHandler {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &HealthHandler{
		ring:  ring,
		store: store,
		clock: clock,
		log:   log.WithComponent("HealthHandler"),
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Checks the key ring and the shared key store.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	checks := h.performChecks(c.Request.Context())

	httpStatus := http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": h.clock.Now().UTC(),
		"checks":    checks,
	})
}

// ReadinessCheck godoc
// @Summary      Readiness Check
// @Description  Ready once the key ring is loaded and holds a key for new cookies.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.APIResponse
// @Failure      503  {object}  dto.APIResponse
// @Router       /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if loaded, _ := h.ring.Loaded(); !loaded {
		c.JSON(http.StatusServiceUnavailable, dto.ServiceUnavailableResponse("key ring not loaded", middleware.TraceID(c)))
		return
	}
	key, err := h.ring.CurrentKey()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.ServiceUnavailableResponse("no usable key", middleware.TraceID(c)))
		return
	}

	now := h.clock.Now()
	sendSuccess(c, http.StatusOK, gin.H{
		"status": "ready",
		"current_key": dto.KeyInfoResponse{
			ID:          key.ID,
			Status:      string(key.Status(now)),
			ActivatesAt: key.ActivatesAt,
			ExpiresAt:   key.ExpiresAt,
		},
	})
}

// LivenessCheck godoc
// @Summary      Liveness Check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	var wg sync.WaitGroup
	checks := make(map[string]string)
	mu := &sync.Mutex{}

	checkers := map[string]func(context.Context) error{
		"keyring":  h.checkKeyRing,
		"keystore": h.checkKeyStore,
	}

	wg.Add(len(checkers))
	for name, check := range checkers {
		go func(name string, check func(context.Context) error) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = "error: " + err.Error()
				h.log.Warn(ctx, "Health check failed", logger.String("check", name), logger.Error(err))
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return checks
}

func (h *HealthHandler) checkKeyRing(context.Context) error {
	_, err := h.ring.CurrentKey()
	return err
}

func (h *HealthHandler) checkKeyStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	_, err := h.store.LoadAll(ctx)
	return err
}
