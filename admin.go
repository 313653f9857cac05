package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminTokenExpiry = 12 * time.Hour
	adminBcryptCost  = 10
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
	statsWindowDays  = 1
	topCollectors    = 10
)

var (
	errAdminDisabled   = errors.New("admin disabled")
	errBadCredentials  = errors.New("invalid password")
	errTooManyAttempts = errors.New("too many login attempts, try again later")
)

// StatsSource supplies the numbers behind /admin/stats
type StatsSource interface {
	Metrics() map[string]any
}

// Admin guards the operator endpoints with a password login that hands out
// short-lived JWTs. The signing secret lives only in this process.
type Admin struct {
	passHash  []byte
	jwtSecret []byte
	hub       *Hub
	stats     StatsSource
	analytics *Analytics
	log       *zap.Logger

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAdmin hashes the configured password. An empty password disables login.
func NewAdmin(password string, hub *Hub, stats StatsSource, analytics *Analytics, log *zap.Logger) (*Admin, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	a := &Admin{
		jwtSecret: secret,
		hub:       hub,
		stats:     stats,
		analytics: analytics,
		log:       log,
		rateMap:   make(map[string]*rateEntry),
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), adminBcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		a.passHash = hash
	}
	return a, nil
}

// Login checks the password and returns a signed token
func (a *Admin) Login(password, ip string) (string, error) {
	if a.passHash == nil {
		return "", errAdminDisabled
	}
	if !a.checkRate(ip) {
		return "", errTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", errBadCredentials
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": now.Add(adminTokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateToken accepts only unexpired HS256 tokens minted by this process
func (a *Admin) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if sub, _ := claims["sub"].(string); sub != "admin" {
		return fmt.Errorf("invalid token claims")
	}
	return nil
}

func (a *Admin) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// HandleLogin serves POST /admin/login
func (a *Admin) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ip := extractIP(r)
	token, err := a.Login(req.Password, ip)
	switch {
	case errors.Is(err, errAdminDisabled):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, errTooManyAttempts):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case errors.Is(err, errBadCredentials):
		a.log.Warn("admin login failed", zap.String("ip", ip))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		a.log.Error("admin login", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	a.log.Info("admin login", zap.String("ip", ip))
	writeJSON(w, loginResponse{Token: token})
}

// HandleStats serves GET /admin/stats to bearer-token holders
func (a *Admin) HandleStats(w http.ResponseWriter, r *http.Request) {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || a.ValidateToken(bearer) != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resp := map[string]any{
		"clients": a.hub.ClientCount(),
		"conns":   a.hub.TotalConns(),
		"arena":   a.stats.Metrics(),
	}
	if a.analytics != nil {
		counts, err := a.analytics.EventCounts(statsWindowDays)
		if err != nil {
			a.log.Warn("analytics event counts", zap.Error(err))
		}
		top, err := a.analytics.TopCollectors(topCollectors)
		if err != nil {
			a.log.Warn("analytics top collectors", zap.Error(err))
		}
		resp["events"] = counts
		resp["topCollectors"] = top
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
