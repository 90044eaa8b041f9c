// Package health tracks datastore reachability and reports it over the gRPC
// health protocol and the HTTP /health endpoint.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"resto-pos/internal/logger"
)

const (
	ServiceName     = "resto.pos"
	pingTimeout     = 3 * time.Second
	defaultInterval = 15 * time.Second
	actionHealth    = "health_check"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (r Report) Healthy() bool {
	return r.Status != "unhealthy"
}

type Checker struct {
	db     Pinger
	redis  *redis.Client
	server *grpchealth.Server
	log    *logger.Logger

	mu   sync.RWMutex
	last Report
}

func NewChecker(db Pinger, redisClient *redis.Client, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.Discard()
	}
	return &Checker{
		db:     db,
		redis:  redisClient,
		server: grpchealth.NewServer(),
		log:    log,
	}
}

// Check pings the datastore and redis. The service stops serving only when
// the datastore is down; a redis outage only degrades events and caches.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	report := Report{
		Status:    "healthy",
		Checks:    map[string]string{},
		CheckedAt: time.Now(),
	}

	if err := c.db.PingContext(ctx); err != nil {
		report.Status = "unhealthy"
		report.Checks["database"] = err.Error()
	} else {
		report.Checks["database"] = "ok"
	}

	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			if report.Status == "healthy" {
				report.Status = "degraded"
			}
			report.Checks["redis"] = err.Error()
		} else {
			report.Checks["redis"] = "ok"
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)

	c.mu.Lock()
	previous := c.last.Status
	c.last = report
	c.mu.Unlock()

	if previous != report.Status {
		c.log.Info(ctx, actionHealth, "health status changed",
			slog.String("from", previous),
			slog.String("to", report.Status))
	}
	return report
}

func (c *Checker) Last() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run re-checks on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// NewGRPCServer exposes the checker through grpc.health.v1 with reflection.
func (c *Checker) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, c.server)
	reflection.Register(s)
	return s
}

func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Check(ctx.Request.Context())
		code := http.StatusOK
		if !report.Healthy() {
			code = http.StatusServiceUnavailable
		}
		ctx.JSON(code, report)
	}
}
