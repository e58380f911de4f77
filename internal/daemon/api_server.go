package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fanboxed/internal/history"
	"fanboxed/internal/logging"
	"fanboxed/internal/progress"
	"fanboxed/internal/services"
)

const (
	maxEventWait     = 25 * time.Second
	defaultEventPage = 200
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	echo   *echo.Echo

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, d *Daemon, logger *slog.Logger) *apiServer {
	s := &apiServer{
		bind:   strings.TrimSpace(bind),
		token:  strings.TrimSpace(token),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.logRequests)

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)

	protected := api.Group("", bearerAuth(s.token))
	protected.GET("/queue", s.handleQueue)
	protected.POST("/queue", s.handleEnqueue)
	protected.GET("/events", s.handleEvents)
	protected.GET("/history", s.handleHistory)

	s.echo = e
	s.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxEventWait + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// bearerAuth requires "Authorization: Bearer <token>" when token is set.
func bearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			}
			return next(c)
		}
	}
}

func (s *apiServer) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(services.WithCorrelationID(req.Context(), requestID)))

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Debug("api request",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", c.Response().Status),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	}
}

func (s *apiServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.daemon.Health())
}

func (s *apiServer) handleQueue(c echo.Context) error {
	return c.JSON(http.StatusOK, queueResponse(s.daemon.pipeline.Manager.Snapshot()))
}

func (s *apiServer) handleEnqueue(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if len(req.Posts) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "posts is required"})
	}
	resp, err := s.daemon.Enqueue(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	status := http.StatusAccepted
	if len(resp.Added) == 0 && len(resp.Invalid) > 0 && len(resp.Duplicate) == 0 && len(resp.Skipped) == 0 {
		status = http.StatusBadRequest
	}
	return c.JSON(status, resp)
}

func (s *apiServer) handleEvents(c echo.Context) error {
	since, _ := strconv.ParseUint(c.QueryParam("since"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultEventPage
	}
	wait := parseBool(c.QueryParam("wait"))

	ctx := c.Request().Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxEventWait)
		defer cancel()
	}
	events, next, err := s.daemon.hub.Fetch(ctx, since, limit, wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if events == nil {
		events = []progress.Event{}
	}
	return c.JSON(http.StatusOK, EventsResponse{Events: events, Next: next})
}

func (s *apiServer) handleHistory(c echo.Context) error {
	store := s.daemon.pipeline.History
	if store == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "history is disabled"})
	}
	limit := 50
	if value := c.QueryParam("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
		limit = parsed
	}
	var statuses []history.Status
	for _, value := range c.QueryParams()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := history.ParseStatus(value)
		if !ok {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown status %q", value)})
		}
		statuses = append(statuses, status)
	}
	entries, err := store.List(c.Request().Context(), limit, statuses...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{Entries: entries})
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}
