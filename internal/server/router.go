package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/solo/internal/marker"
)

// Instance describes the launcher process serving the API.
type Instance struct {
	PID        int
	StartedAt  time.Time
	MarkerPath string
	Product    string
}

// Router provides embeddable HTTP handlers describing the running instance.
// Endpoints:
//
//	GET {basePath}/healthz       liveness check
//	GET {basePath}/api/instance  pid, start time, marker path and ownership
//	GET {basePath}/metrics       prometheus exposition (when enabled)
//
// basePath is normalized to "" or "/seg[/seg...]" without a trailing slash.
type Router struct {
	inst     Instance
	basePath string
	metrics  http.Handler
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(inst Instance, basePath string) *Router {
	return &Router{inst: inst, basePath: normalizeBase(basePath)}
}

func normalizeBase(bp string) string {
	bp = strings.Trim(strings.TrimSpace(bp), "/")
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// WithMetrics mounts h at /metrics.
func (r *Router) WithMetrics(h http.Handler) *Router {
	r.metrics = h
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath, noStore)
	group.GET("/healthz", r.handleHealth)
	group.GET("/api/instance", r.handleInstance)
	if r.metrics != nil {
		group.GET("/metrics", gin.WrapH(r.metrics))
	}
	return g
}

// noStore keeps proxies from serving a stale owner after a takeover.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Next()
}

type healthResp struct {
	Status string `json:"status"`
}

type instanceResp struct {
	PID         int       `json:"pid"`
	Product     string    `json:"product"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	MarkerPath  string    `json:"marker_path"`
	MarkerOwned bool      `json:"marker_owned"`
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResp{Status: "ok"})
}

func (r *Router) handleInstance(c *gin.Context) {
	resp := instanceResp{
		PID:        r.inst.PID,
		Product:    r.inst.Product,
		StartedAt:  r.inst.StartedAt,
		MarkerPath: r.inst.MarkerPath,
	}
	if !r.inst.StartedAt.IsZero() {
		resp.Uptime = time.Since(r.inst.StartedAt).Truncate(time.Second).String()
	}
	// another launcher may have taken over; report whether we still own it
	if r.inst.MarkerPath != "" {
		if pid, err := marker.New(r.inst.MarkerPath).Read(); err == nil && pid == r.inst.PID {
			resp.MarkerOwned = true
		}
	}
	c.JSON(http.StatusOK, resp)
}
