package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lotas/mailvox/internal/applog"
)

// Config holds relay server settings.
type Config struct {
	Addr       string
	GroqAPIKey string
	GroqModel  string
	GroqURL    string // override for tests
	MurfAPIKey string
	MurfURL    string // override for tests
	RatePerMin int    // summarize requests per minute per client IP; 0 = default
}

const defaultRatePerMin = 10

// Server is the summarization relay: it accepts scraped email text and
// forwards it to the LLM and TTS providers.
type Server struct {
	cfg Config
	llm *GroqClient
	tts *MurfClient

	mu      sync.Mutex
	clients map[string]*ipClient
}

type ipClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a relay Server from cfg.
func New(cfg Config) *Server {
	llm := NewGroqClient(cfg.GroqAPIKey)
	if cfg.GroqModel != "" {
		llm.Model = cfg.GroqModel
	}
	if cfg.GroqURL != "" {
		llm.BaseURL = cfg.GroqURL
	}
	tts := NewMurfClient(cfg.MurfAPIKey)
	if cfg.MurfURL != "" {
		tts.BaseURL = cfg.MurfURL
	}
	if cfg.RatePerMin == 0 {
		cfg.RatePerMin = defaultRatePerMin
	}
	return &Server{
		cfg:     cfg,
		llm:     llm,
		tts:     tts,
		clients: make(map[string]*ipClient),
	}
}

type summarizeRequest struct {
	EmailContent string `json:"email_content"`
	VoiceID      string `json:"voice_id"`
}

type summarizeResponse struct {
	Success   bool            `json:"success"`
	Summary   string          `json:"summary,omitempty"`
	ModelUsed string          `json:"model_used,omitempty"`
	Speech    json.RawMessage `json:"speech"`
	VoiceUsed string          `json:"voice_used,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /summarize", s.rateLimited(s.handleSummarize))
	mux.HandleFunc("GET /voices", s.handleVoices)
	return mux
}

// ListenAndServe runs the relay until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	applog.Info("relay.start", "addr", s.cfg.Addr)
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         "email-summarizer",
		"murf_configured": s.cfg.MurfAPIKey != "",
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmailContent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email content is required"})
		return
	}

	voice := req.VoiceID
	if voice == "" {
		voice = DefaultVoice
	}
	applog.Info("relay.summarize", "req", reqID, "voice", voice, "len", len(req.EmailContent))

	summary, err := s.llm.Summarize(r.Context(), req.EmailContent)
	if err != nil {
		applog.Error("relay.llm", err, "req", reqID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	// Speech synthesis failure is non-fatal: the summary is still returned
	// with a null speech object, matching the wire contract.
	speech, err := s.tts.Generate(r.Context(), summary, voice)
	if err != nil {
		applog.Error("relay.speech", err, "req", reqID, "voice", voice)
		speech = nil
	}

	writeJSON(w, http.StatusOK, summarizeResponse{
		Success:   true,
		Summary:   summary,
		ModelUsed: s.llm.Model,
		Speech:    speech,
		VoiceUsed: voice,
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.tts.Voices(r.Context())
	if err != nil {
		applog.Error("relay.voices", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"voices":  voices,
	})
}

// rateLimited applies a per-IP token bucket to the wrapped handler.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !s.limiterFor(ip).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) > 1024 {
		for k, c := range s.clients {
			if time.Since(c.lastSeen) > 10*time.Minute {
				delete(s.clients, k)
			}
		}
	}

	c, ok := s.clients[ip]
	if !ok {
		c = &ipClient{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.cfg.RatePerMin)), s.cfg.RatePerMin),
		}
		s.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
