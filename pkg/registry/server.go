package registry

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// sweepInterval is how often the background sweeper drops expired records.
const sweepInterval = 10 * time.Second

// Store is the in-memory service table with TTL expiry. Expiry is enforced
// lazily on every read and eagerly by the server's sweeper.
type Store struct {
	mu       sync.RWMutex
	services map[string]ServiceInfo
	logger   *slog.Logger

	// now is replaceable in tests to step record lifetimes.
	now func() time.Time
}

// NewStore creates an empty service table.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		services: make(map[string]ServiceInfo),
		logger:   logger,
		now:      time.Now,
	}
}

// Put inserts or replaces a registration and stamps its heartbeat.
func (s *Store) Put(info ServiceInfo) {
	if info.TTLSeconds <= 0 {
		info.TTLSeconds = DefaultTTLSeconds
	}
	if info.Metadata != nil {
		meta := make(map[string]any, len(info.Metadata))
		for k, v := range info.Metadata {
			meta[k] = v
		}
		info.Metadata = meta
	}
	info.LastHeartbeat = s.now()

	s.mu.Lock()
	s.services[info.ID] = info
	s.mu.Unlock()
}

// Touch refreshes a registration's heartbeat. It reports false when the
// record is absent or already expired; expired records are dropped.
func (s *Store) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.services[id]
	if !ok {
		return false
	}
	if s.expired(info) {
		delete(s.services, id)
		return false
	}

	info.LastHeartbeat = s.now()
	s.services[id] = info
	return true
}

// Remove deletes a registration, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[id]; !ok {
		return false
	}
	delete(s.services, id)
	return true
}

// List returns the live registrations, optionally filtered by type. Expired
// records are skipped.
func (s *Store) List(serviceType string) []ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]ServiceInfo, 0, len(s.services))
	for _, info := range s.services {
		if s.expired(info) {
			continue
		}
		if serviceType != "" && info.Type != serviceType {
			continue
		}
		services = append(services, info)
	}
	return services
}

// Len counts the live registrations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, info := range s.services {
		if !s.expired(info) {
			count++
		}
	}
	return count
}

// Sweep deletes every expired record and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, info := range s.services {
		if s.expired(info) {
			delete(s.services, id)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(info ServiceInfo) bool {
	return s.now().Sub(info.LastHeartbeat) > info.TTL()
}

// Server exposes a Store over HTTP and owns the background sweeper.
type Server struct {
	store  *Store
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer wraps the store in a registry HTTP server.
func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  store,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Routes builds the gin engine serving the registry endpoints.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/register", s.handleRegister)
	r.POST("/heartbeat", s.handleHeartbeat)
	r.GET("/services", s.handleServices)
	r.POST("/deregister", s.handleDeregister)
	r.GET("/health", s.handleHealth)
	return r
}

// StartSweeper launches the background expiry sweep.
func (s *Server) StartSweeper(ctx context.Context) {
	s.wg.Add(1)
	go s.runSweeper(ctx)
}

// Stop terminates the sweeper and waits for it. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Server) runSweeper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.Sweep(); removed > 0 {
				s.logger.Info("Swept expired services", "removed", removed)
			}
		}
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var info ServiceInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if info.ID == "" || info.Host == "" || info.Port <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, host and port are required"})
		return
	}

	s.store.Put(info)
	s.logger.Info("Service registered",
		"service_id", info.ID, "type", info.Type, "endpoint", info.Endpoint(), "ttl_seconds", info.TTLSeconds)
	c.JSON(http.StatusOK, gin.H{"status": "registered", "id": info.ID})
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.store.Touch(req.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not registered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleServices(c *gin.Context) {
	services := s.store.List(c.Query("type"))
	c.JSON(http.StatusOK, gin.H{"services": services, "count": len(services)})
}

func (s *Server) handleDeregister(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.store.Remove(req.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not registered"})
		return
	}
	s.logger.Info("Service deregistered", "service_id", req.ID)
	c.JSON(http.StatusOK, gin.H{"status": "deregistered"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "services": s.store.Len()})
}
