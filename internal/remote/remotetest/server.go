// Package remotetest provides an in-process fake of the assistant service
// for tests. Set the Func fields before issuing requests to override the
// default behavior; all recorded state is safe for concurrent use.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/stockchat/internal/remote"
)

// DefaultSession is the session id the default chat handler assigns.
const DefaultSession = "session-1"

// ChatRequest is a decoded POST /chat/ body.
type ChatRequest struct {
	Message   string `json:"mensagem"`
	Session   string `json:"session"`
	RequestID string `json:"-"`
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   string
}

// JSON builds a Response whose body is v encoded as JSON.
func JSON(status int, v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("remotetest: marshal response: %v", err))
	}
	return Response{Status: status, Body: string(data)}
}

// Raw builds a Response with a literal body.
func Raw(status int, body string) Response {
	return Response{Status: status, Body: body}
}

// Server is a fake assistant service.
type Server struct {
	URL string

	// ChatFunc answers POST /chat/. Nil echoes the message and assigns
	// DefaultSession when the request carries none.
	ChatFunc func(req ChatRequest) Response

	// GetConfigFunc answers GET /config/. Nil returns the stored configuration.
	GetConfigFunc func() Response

	// SaveConfigFunc answers POST /config/. Nil stores the body and echoes it.
	SaveConfigFunc func(cfg remote.Configuration) Response

	srv *httptest.Server

	mu          sync.Mutex
	config      remote.Configuration
	chats       []ChatRequest
	configGets  int
	configSaves []remote.Configuration
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{}

	r := chi.NewRouter()
	r.Get("/config/", s.handleGetConfig)
	r.Post("/config/", s.handleSaveConfig)
	r.Post("/chat/", s.handleChat)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close shuts the server down early, making later requests fail at the
// transport level.
func (s *Server) Close() {
	s.srv.Close()
}

// SetConfig replaces the stored configuration.
func (s *Server) SetConfig(cfg remote.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Config returns the stored configuration.
func (s *Server) Config() remote.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Chats returns a copy of every chat request received, in order.
func (s *Server) Chats() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRequest, len(s.chats))
	copy(out, s.chats)
	return out
}

// ConfigGets returns how many GET /config/ requests were received.
func (s *Server) ConfigGets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configGets
}

// ConfigSaves returns every configuration posted, in order.
func (s *Server) ConfigSaves() []remote.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Configuration, len(s.configSaves))
	copy(out, s.configSaves)
	return out
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.configGets++
	cfg := s.config
	s.mu.Unlock()

	if s.GetConfigFunc != nil {
		write(w, s.GetConfigFunc())
		return
	}
	write(w, JSON(http.StatusOK, cfg))
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg remote.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		write(w, JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"}))
		return
	}

	s.mu.Lock()
	s.configSaves = append(s.configSaves, cfg)
	s.mu.Unlock()

	if s.SaveConfigFunc != nil {
		write(w, s.SaveConfigFunc(cfg))
		return
	}

	s.SetConfig(cfg)
	write(w, JSON(http.StatusOK, cfg))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		write(w, JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"}))
		return
	}
	req.RequestID = r.Header.Get(remote.RequestIDHeader)

	s.mu.Lock()
	s.chats = append(s.chats, req)
	s.mu.Unlock()

	if s.ChatFunc != nil {
		write(w, s.ChatFunc(req))
		return
	}

	session := req.Session
	if session == "" {
		session = DefaultSession
	}
	write(w, JSON(http.StatusOK, map[string]string{
		"session":  session,
		"resposta": "resposta para: " + req.Message,
	}))
}

func write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}
