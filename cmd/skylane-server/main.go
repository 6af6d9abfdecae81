// Skylane Flight Authorization Server
// Serves the REST API for flight plan management and the telemetry WebSocket endpoint
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/skylane-uas/skylane/internal/airspace"
	"github.com/skylane-uas/skylane/internal/auth"
	"github.com/skylane-uas/skylane/internal/broadcast"
	"github.com/skylane-uas/skylane/internal/db"
	"github.com/skylane-uas/skylane/internal/flight"
	"github.com/skylane-uas/skylane/internal/telemetry"
	"github.com/skylane-uas/skylane/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.Int("port", 0, "HTTP server port (overrides config)")
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

const claimsKey contextKey = "claims"

// Server holds the HTTP server and its dependencies
type Server struct {
	router       *chi.Mux
	db           *db.DB
	authSvc      *auth.Service
	userRepo     *db.UserRepository
	droneRepo    *db.DroneRepository
	zoneRepo     *db.ZoneRepository
	flightSvc    *flight.Service
	hub          *broadcast.Hub
	pool         *telemetry.Pool
	upgrader     websocket.Upgrader
	loginLimiter *rate.Limiter
}

func main() {
	flag.Parse()

	log.Println("🚀 Starting Skylane flight authorization server...")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (retry while it comes up)
	database, err := db.ReconnectWithRetry(cfg.Database, 5, time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Create or update schema
	if err := database.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize auth service
	authSvc := auth.NewService(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenDuration: time.Duration(cfg.Auth.TokenDurationHours) * time.Hour,
	})

	// Initialize repositories
	userRepo := db.NewUserRepository(database)
	droneRepo := db.NewDroneRepository(database)
	fpRepo := db.NewFlightPlanRepository(database)
	zoneRepo := db.NewZoneRepository(database)

	// Seed a default authority admin if none exists
	if err := seedAuthorityAdmin(database, userRepo, authSvc); err != nil {
		log.Printf("Warning: Failed to seed authority admin: %v", err)
	}

	// Core wiring: state machine, broadcast hub, simulation pool
	flightSvc := flight.NewService(fpRepo, zoneRepo, droneRepo)
	hub := broadcast.NewHub(log.Default())
	sim := telemetry.NewSimulator(fpRepo, flightSvc, hub, log.Default())
	sim.SetPace(cfg.Simulation.SpeedMPS, time.Duration(cfg.Simulation.TelemetryIntervalSeconds*float64(time.Second)))
	pool := telemetry.NewPool(sim, log.Default())

	// Create server
	srv := &Server{
		router:    chi.NewRouter(),
		db:        database,
		authSvc:   authSvc,
		userRepo:  userRepo,
		droneRepo: droneRepo,
		zoneRepo:  zoneRepo,
		flightSvc: flightSvc,
		hub:       hub,
		pool:      pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		// Allow bursts of 5 login attempts, refilling one per second
		loginLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	// Setup routes
	srv.setupRoutes()

	listenPort := cfg.Server.Port
	if *port != 0 {
		listenPort = strconv.Itoa(*port)
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, listenPort),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("📡 Server listening on http://localhost:%s", listenPort)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n👋 Shutting down server...")

	// Graceful shutdown: stop accepting requests, then stop simulations
	// and close telemetry subscribers.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	pool.Shutdown()
	hub.CloseAll()

	log.Println("✅ Server stopped")
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	// Telemetry stream for observers
	r.Get("/ws/telemetry", s.handleTelemetryWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetCurrentUser)

			// Drone endpoints
			r.Post("/drones", s.handleRegisterDrone)
			r.Get("/drones", s.handleListDrones)
			r.Get("/drones/{id}", s.handleGetDrone)

			// Flight plan endpoints
			r.Post("/flights", s.handleSubmitFlight)
			r.Get("/flights", s.handleListMyFlights)
			r.Get("/flights/all", s.handleListAllFlights)
			r.Get("/flights/{id}", s.handleGetFlight)
			r.Get("/flights/{id}/waypoints", s.handleGetFlightWaypoints)
			r.Put("/flights/{id}/decision", s.handleDecideFlight)
			r.Put("/flights/{id}/start", s.handleStartFlight)
			r.Put("/flights/{id}/cancel", s.handleCancelFlight)
			r.Delete("/flights/{id}", s.handleDeleteFlight)

			// Restricted zone endpoints
			r.Get("/zones", s.handleListZones)
			r.Post("/zones", s.handleCreateZone)
			r.Delete("/zones/{id}", s.handleDeactivateZone)

			// System endpoints
			r.Get("/system/status", s.handleGetSystemStatus)
		})
	})
}

// Auth middleware
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		// Extract token (format: "Bearer <token>")
		var token string
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		} else {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		// Validate token
		claims, err := s.authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom derives the flight-service actor from validated claims.
func actorFrom(r *http.Request) flight.Actor {
	claims := r.Context().Value(claimsKey).(*auth.Claims)
	return flight.Actor{
		UserID:         claims.UserID,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}
}

// handleRegister creates a new pilot account
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FullName == "" || req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "Full name, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := &db.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         auth.RolePilot,
		IsActive:     true,
	}
	if err := s.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrUserExists) {
			http.Error(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("Error creating user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// handleLogin handles user login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Get user from database
	user, err := s.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Verify password
	if err := s.authSvc.ComparePassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Check if user is active
	if !user.IsActive {
		http.Error(w, "Account is disabled", http.StatusForbidden)
		return
	}

	// Generate JWT token
	token, err := s.authSvc.GenerateToken(user.ID, user.Email, user.Role, user.OrganizationID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// handleGetCurrentUser returns the currently authenticated user
func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(claimsKey).(*auth.Claims)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":             claims.UserID,
		"email":          claims.Email,
		"role":           claims.Role,
		"organizationId": claims.OrganizationID,
	})
}

// Drone handlers

func (s *Server) handleRegisterDrone(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req struct {
		ModelName    string `json:"modelName"`
		SerialNumber string `json:"serialNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ModelName == "" || req.SerialNumber == "" {
		http.Error(w, "Model name and serial number are required", http.StatusBadRequest)
		return
	}

	drone := &flight.Drone{
		ModelName:      req.ModelName,
		SerialNumber:   req.SerialNumber,
		OwnerUserID:    actor.UserID,
		OrganizationID: actor.OrganizationID,
	}
	if err := s.droneRepo.Create(r.Context(), drone); err != nil {
		if errors.Is(err, db.ErrDroneExists) {
			http.Error(w, "Serial number already registered", http.StatusConflict)
			return
		}
		log.Printf("Error registering drone: %v", err)
		http.Error(w, "Failed to register drone", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, drone)
}

func (s *Server) handleListDrones(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	drones, err := s.droneRepo.ListByOwner(r.Context(), actor.UserID)
	if err != nil {
		log.Printf("Error listing drones: %v", err)
		http.Error(w, "Failed to list drones", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"drones": drones,
		"count":  len(drones),
	})
}

func (s *Server) handleGetDrone(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	droneID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid drone ID", http.StatusBadRequest)
		return
	}

	drone, err := s.droneRepo.GetDrone(r.Context(), droneID)
	if err != nil {
		log.Printf("Error getting drone: %v", err)
		http.Error(w, "Failed to get drone", http.StatusInternalServerError)
		return
	}
	if drone == nil {
		http.Error(w, "Drone not found", http.StatusNotFound)
		return
	}
	if drone.OwnerUserID != actor.UserID && !actor.IsAuthority() {
		http.Error(w, "Not authorized to view this drone", http.StatusForbidden)
		return
	}

	respondJSON(w, http.StatusOK, drone)
}

// Flight plan handlers

func (s *Server) handleSubmitFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req struct {
		DroneID   int                    `json:"droneId"`
		Departure time.Time              `json:"plannedDeparture"`
		Arrival   time.Time              `json:"plannedArrival"`
		Notes     string                 `json:"notes"`
		Waypoints []flight.WaypointInput `json:"waypoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := s.flightSvc.Submit(r.Context(), actor, flight.SubmitRequest{
		DroneID:   req.DroneID,
		Departure: req.Departure,
		Arrival:   req.Arrival,
		Notes:     req.Notes,
		Waypoints: req.Waypoints,
	})
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListMyFlights(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	limit, offset := pagination(r)

	plans, err := s.flightSvc.ListMine(r.Context(), actor, limit, offset)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flights": plans,
		"count":   len(plans),
	})
}

func (s *Server) handleListAllFlights(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	limit, offset := pagination(r)

	plans, err := s.flightSvc.ListAll(r.Context(), actor, limit, offset)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flights": plans,
		"count":   len(plans),
	})
}

func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	plan, err := s.flightSvc.Get(r.Context(), actor, planID)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleGetFlightWaypoints(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	waypoints, err := s.flightSvc.Waypoints(r.Context(), actor, planID)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"waypoints": waypoints,
		"count":     len(waypoints),
	})
}

func (s *Server) handleDecideFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := s.flightSvc.Decide(r.Context(), actor, planID, flight.Status(req.Decision), req.Reason)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleStartFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	plan, err := s.flightSvc.Start(r.Context(), actor, planID)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	// Fire-and-forget: the response returns with the ACTIVE plan while
	// the simulation runs on the pool.
	s.pool.Launch(plan.ID)

	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCancelFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	plan, err := s.flightSvc.Cancel(r.Context(), actor, planID)
	if err != nil {
		writeFlightError(w, err)
		return
	}

	// Stop the running simulation if the plan was ACTIVE. No-op otherwise.
	s.pool.Cancel(planID)

	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeleteFlight(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	planID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid flight plan ID", http.StatusBadRequest)
		return
	}

	if err := s.flightSvc.Delete(r.Context(), actor, planID); err != nil {
		writeFlightError(w, err)
		return
	}

	// An authority delete may remove an ACTIVE plan out from under its
	// simulation; stop it too.
	s.pool.Cancel(planID)

	w.WriteHeader(http.StatusNoContent)
}

// Restricted zone handlers

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.zoneRepo.ListActiveZones(r.Context())
	if err != nil {
		log.Printf("Error listing zones: %v", err)
		http.Error(w, "Failed to list restricted zones", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zones,
		"count": len(zones),
	})
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !auth.CanManageZones(actor.Role) {
		http.Error(w, "Only an authority admin may manage zones", http.StatusForbidden)
		return
	}

	var zone airspaceZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&zone); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	z, err := zone.toZone()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.zoneRepo.Create(r.Context(), z, actor.UserID); err != nil {
		log.Printf("Error creating zone: %v", err)
		http.Error(w, "Failed to create restricted zone", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, z)
}

func (s *Server) handleDeactivateZone(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !auth.CanManageZones(actor.Role) {
		http.Error(w, "Only an authority admin may manage zones", http.StatusForbidden)
		return
	}

	zoneID, err := urlID(r)
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	if err := s.zoneRepo.Deactivate(r.Context(), zoneID); err != nil {
		http.Error(w, "Restricted zone not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetSystemStatus reports datastore and simulation health.
func (s *Server) handleGetSystemStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		log.Printf("Error getting stats: %v", err)
		http.Error(w, "Failed to get system status", http.StatusInternalServerError)
		return
	}
	stats["running_simulations"] = s.pool.ActiveCount()
	stats["telemetry_subscribers"] = s.hub.Count()

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !db.HealthCheck(s.db) {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleTelemetryWS upgrades the connection and registers it with the
// broadcast hub. The socket is broadcast-only; client messages are read
// and discarded to detect disconnects. An optional ?token= credential
// identifies the client for logging and future per-client filtering.
func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	clientID := "anonymous"
	if token := r.URL.Query().Get("token"); token != "" {
		if claims, err := s.authSvc.ValidateToken(token); err == nil {
			clientID = claims.Email
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := broadcast.NewWSConn(conn)
	s.hub.Register(sub, clientID)

	// Reader loop: we never act on inbound messages, but reading is how
	// gorilla surfaces close frames and dead peers.
	go func() {
		defer func() {
			s.hub.Unregister(sub)
			sub.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Helper functions

// airspaceZoneRequest is the create-zone request body.
type airspaceZoneRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Kind            string   `json:"kind"`
	CenterLatitude  float64  `json:"centerLatitude"`
	CenterLongitude float64  `json:"centerLongitude"`
	RadiusM         float64  `json:"radiusM"`
	MinLatitude     float64  `json:"minLatitude"`
	MaxLatitude     float64  `json:"maxLatitude"`
	MinLongitude    float64  `json:"minLongitude"`
	MaxLongitude    float64  `json:"maxLongitude"`
	MinAltitudeM    *float64 `json:"minAltitudeM"`
	MaxAltitudeM    *float64 `json:"maxAltitudeM"`
}

func (req *airspaceZoneRequest) toZone() (*airspace.Zone, error) {
	if req.Name == "" {
		return nil, errors.New("zone name is required")
	}
	switch req.Kind {
	case airspace.KindCircle:
		if req.RadiusM <= 0 {
			return nil, errors.New("circular zone requires a positive radius")
		}
	case airspace.KindRectangle:
		if req.MinLatitude > req.MaxLatitude || req.MinLongitude > req.MaxLongitude {
			return nil, errors.New("rectangular zone bounds are inverted")
		}
	default:
		return nil, fmt.Errorf("unknown zone kind %q", req.Kind)
	}

	return &airspace.Zone{
		Name:            req.Name,
		Description:     req.Description,
		Kind:            req.Kind,
		CenterLatitude:  req.CenterLatitude,
		CenterLongitude: req.CenterLongitude,
		RadiusM:         req.RadiusM,
		MinLatitude:     req.MinLatitude,
		MaxLatitude:     req.MaxLatitude,
		MinLongitude:    req.MinLongitude,
		MaxLongitude:    req.MaxLongitude,
		MinAltitudeM:    req.MinAltitudeM,
		MaxAltitudeM:    req.MaxAltitudeM,
	}, nil
}

// writeFlightError maps the flight service's error taxonomy onto HTTP
// status codes.
func writeFlightError(w http.ResponseWriter, err error) {
	var validationErr *flight.ValidationError
	var zoneErr *flight.ZoneViolationError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &zoneErr):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":         zoneErr.Error(),
			"waypointIndex": zoneErr.WaypointIndex,
			"zoneName":      zoneErr.ZoneName,
		})
	case errors.Is(err, flight.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, flight.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, flight.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func urlID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// seedAuthorityAdmin creates a default authority admin account if the
// system has none, so a fresh deployment can approve flights.
func seedAuthorityAdmin(database *db.DB, users *db.UserRepository, authSvc *auth.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, auth.RoleAuthorityAdmin,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("SKYLANE_ADMIN_PASSWORD")
	if password == "" {
		password = "admin-change-me"
	}
	hash, err := authSvc.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &db.User{
		FullName:     "Authority Admin",
		Email:        "admin@skylane.local",
		PasswordHash: hash,
		Role:         auth.RoleAuthorityAdmin,
		IsActive:     true,
	}
	if err := users.Create(ctx, admin); err != nil && !errors.Is(err, db.ErrUserExists) {
		return err
	}

	log.Println("🔑 Seeded default authority admin (admin@skylane.local)")
	return nil
}
