package health

import (
	"context"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 2 * time.Second

// Checker pings one dependency. *pgxpool.Pool satisfies it directly.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc lets a plain function act as a Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker pings a go-redis client.
func RedisChecker(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// Probe is the outcome of one dependency check.
type Probe struct {
	Status    string `doc:"healthy or unhealthy"   json:"status"`
	LatencyMs int64  `doc:"Round trip of the ping" json:"latencyMs"`
}

type Handler struct {
	checkers map[string]Checker
}

func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers}
}

type Response struct {
	Body struct {
		Status string           `doc:"ok when every dependency answers, degraded otherwise" json:"status"`
		Checks map[string]Probe `doc:"Per-dependency result"                                json:"checks,omitempty"`
	}
}

// Check pings every dependency concurrently, each under its own deadline.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Checks = make(map[string]Probe, len(h.checkers))

	for name, checker := range h.checkers {
		group.Go(func() error {
			probe := ping(ctx, checker)

			mu.Lock()
			defer mu.Unlock()

			resp.Body.Checks[name] = probe
			if probe.Status != "healthy" {
				resp.Body.Status = "degraded"
			}

			return nil
		})
	}

	_ = group.Wait()

	return resp, nil
}

func ping(ctx context.Context, checker Checker) Probe {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	probe := Probe{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}

	if err != nil {
		probe.Status = "unhealthy"
	}

	return probe
}

func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Report dependency health",
	}, h.Check)
}
