package obs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

// Check probes one dependency the service cannot serve without.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandlers serves /livez and /readyz. Readiness fails when any check
// fails; the body lists every check so an operator sees which one.
type HealthHandlers struct {
	Checks []Check
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.Checks))
		failed  bool
	)
	var g errgroup.Group
	for _, check := range h.Checks {
		g.Go(func() error {
			status := "ok"
			if err := check.Probe(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[check.Name] = status
			failed = failed || status != "ok"
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}
