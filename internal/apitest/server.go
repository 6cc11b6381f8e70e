// Package apitest is an in-memory stand-in for the evaluation backend. It
// serves the same REST surface over chi so the client, the session refresh
// path and the CLI can be exercised end to end without the real service.
package apitest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// DefaultTaskScript is the sequence of statuses a new task reports, one per
// status read. The last status repeats.
var DefaultTaskScript = []models.TaskStatus{
	models.TaskStatusQueued,
	models.TaskStatusInProgress,
	models.TaskStatusDone,
}

type account struct {
	user models.User
	hash []byte
}

type taskRecord struct {
	task   models.Task
	owner  string
	script []models.TaskStatus
	step   int
	result json.RawMessage
}

// Server holds the backend state. All methods are safe for concurrent use.
type Server struct {
	logger     *slog.Logger
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	paginate   bool
	script     []models.TaskStatus
	result     json.RawMessage

	mu         sync.Mutex
	accounts   map[string]*account
	nextUserID int
	projects   map[string]*models.Project
	complaints map[string]*models.Complaint
	tasks      map[string]*taskRecord
	revoked    map[string]bool
	hits       map[string]int
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithPagination wraps list responses in a {"count", "results"} page.
func WithPagination(on bool) Option {
	return func(s *Server) { s.paginate = on }
}

// WithTaskScript sets the statuses reported by new tasks.
func WithTaskScript(statuses ...models.TaskStatus) Option {
	return func(s *Server) { s.script = statuses }
}

// WithTaskResult sets the result_json returned for finished tasks.
func WithTaskResult(raw json.RawMessage) Option {
	return func(s *Server) { s.result = raw }
}

// NewServer creates an empty backend.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:     slog.Default(),
		secret:     []byte("apitest-signing-key"),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
		script:     DefaultTaskScript,
		result:     json.RawMessage(`{"dark_patterns":[]}`),
		accounts:   map[string]*account{},
		projects:   map[string]*models.Project{},
		complaints: map[string]*models.Complaint{},
		tasks:      map[string]*taskRecord{},
		revoked:    map[string]bool{},
		hits:       map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves the backend on a local httptest server. The API root is
// URL()+"/api".
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

// AddUser registers an account and returns its id. role is the backend role
// string: user, owner, regulator or admin.
func (s *Server) AddUser(username, password, role string) int {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: hashing password: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	s.accounts[username] = &account{
		user: models.User{
			ID:          s.nextUserID,
			Username:    username,
			Email:       username + "@example.com",
			BackendRole: role,
			IsSuperuser: role == "admin",
		},
		hash: hash,
	}
	return s.nextUserID
}

// AddProject seeds a project. Empty ids and timestamps are filled in.
func (s *Server) AddProject(p models.Project) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusDraft
	}
	s.projects[p.ID] = &p
	return p
}

// RevokeRefresh makes a refresh token unusable.
func (s *Server) RevokeRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Hits returns how many requests matched a route, keyed as "METHOD pattern",
// for example "POST /api/token/refresh/".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) countHit(route string) {
	s.mu.Lock()
	s.hits[route]++
	s.mu.Unlock()
}

func (s *Server) projectList(filter func(*models.Project) bool) []models.Project {
	out := []models.Project{}
	for _, p := range s.projects {
		if filter(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Server) complaintList(filter func(*models.Complaint) bool) []models.Complaint {
	out := []models.Complaint{}
	for _, c := range s.complaints {
		if filter(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
