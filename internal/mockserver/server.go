// Package mockserver фейковый бэкенд админки детсада для интеграционных тестов и ручных прогонов.
//
// Пути и форматы ответов повторяют настоящий бэкенд, включая его разнобой
// конвертов. Есть проверка Bearer токена, выдача и обновление токенов,
// рубильник недоступности AI и очередь подмененных отказов.
package mockserver

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra/auth"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap"
)

type Options struct {
	Secret    []byte
	AccessTTL time.Duration
	// логин -> пароль
	Users    map[string]string
	Registry prometheus.Registerer
	// Gatherer, если задан, отдается на GET /metrics
	Gatherer prometheus.Gatherer
}

type Server struct {
	router *chi.Mux
	logger *zap.Logger

	issuer    *auth.Issuer
	validator auth.TokenValidator
	accounts  map[string]*auth.Account

	faults  *Faults
	aiDown  atomic.Bool
	metrics  *Metrics
	gatherer prometheus.Gatherer
	data     *dataset
}

// New собирает сервер с начальными данными. Без Users заводится admin/admin123.
func New(opts Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("kyyup-mock-secret")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if len(opts.Users) == 0 {
		opts.Users = map[string]string{"admin": "admin123"}
	}

	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("mock-api"),
		issuer:    auth.NewIssuer(opts.Secret, opts.AccessTTL),
		validator: accessOnly{auth.NewHMACValidator(opts.Secret)},
		accounts:  make(map[string]*auth.Account, len(opts.Users)),
		faults:    NewFaults(),
		metrics:   NewMetrics(opts.Registry),
		gatherer:  opts.Gatherer,
		data:      seed(),
	}
	s.faults.onFault = s.metrics.Faults.Inc

	id := 1
	for name, password := range opts.Users {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", name, err)
		}
		s.accounts[name] = &auth.Account{ID: id, Username: name, Role: "admin", PasswordHash: hash}
		id++
	}

	s.routes()
	return s, nil
}

// accessOnly не пускает refresh токен туда, где ждут access.
type accessOnly struct {
	*auth.Validator
}

func (v accessOnly) VerifyToken(tokenStr string) (*auth.Claims, error) {
	claims, err := v.Validator.VerifyToken(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "access" {
		return nil, fmt.Errorf("not an access token")
	}
	return claims, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.faults.middleware)

		// Публичные
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh-token", s.refreshToken)

		// Под токеном
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.validator, s.logger))
			r.Use(s.aiSwitch)

			s.activityRoutes(r)
			s.advertisementRoutes(r)
			s.aiRoutes(r)
			s.chatRoutes(r)
			s.dataImportRoutes(r)
			s.securityRoutes(r)
			s.enrollmentRoutes(r)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Faults() *Faults { return s.faults }

// SetAIUnavailable включает ответ 503 на все AI-эндпоинты.
func (s *Server) AIUnavailable() bool { return s.aiDown.Load() }

func (s *Server) SetAIUnavailable(down bool) {
	s.aiDown.Store(down)
	s.logger.Info("ai switch", zap.Bool("down", down))
}

// Issue выдает пару токенов без пароля, для тестов и сидов.
func (s *Server) Issue(username string) (*auth.TokenPair, error) {
	acc, ok := s.accounts[username]
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	return s.issuer.Issue(acc)
}

func (s *Server) aiSwitch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.aiDown.Load() && transport.IsAIRequest(apiPath(r)) {
			s.metrics.Faults.Inc()
			writeFail(w, http.StatusServiceUnavailable, "AI service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "bad request")
		return
	}

	pair, err := s.issuer.Login(s.accounts[req.Username], req.Password)
	if err != nil {
		// не уточняем, что именно неверно
		writeFail(w, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	s.logger.Info("login", zap.String("user", req.Username))
	writeOK(w, pair)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &req); err != nil || req.RefreshToken == "" {
		writeFail(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, err := s.issuer.Refresh(req.RefreshToken)
	if err != nil {
		s.logger.Warn("refresh rejected", zap.Error(err))
		writeFail(w, http.StatusUnauthorized, "refresh token invalid")
		return
	}
	writeOK(w, pair)
}
