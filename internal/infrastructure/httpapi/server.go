// Package httpapi serves stored items over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/metrics"
	"BirbFetcher/internal/ports"
)

// ErrInvalidID marks a malformed item id in the request path.
var ErrInvalidID = errors.New("invalid item id")

const shutdownTimeout = 5 * time.Second

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	items  ports.ItemReader
	blobs  ports.ContentStore
	logger *slog.Logger
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

// ItemInfo is the JSON view of an item.
type ItemInfo struct {
	ID          int64  `json:"id"`
	Digest      string `json:"digest"`
	Permalink   string `json:"permalink"`
	SourceURL   string `json:"source_url"`
	ContentType string `json:"content_type"`
	Channel     string `json:"channel"`
	State       string `json:"state"`
}

func NewServer(addr string, items ports.ItemReader, blobs ports.ContentStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	srv := &Server{
		echo:   e,
		items:  items,
		blobs:  blobs,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           addr,
		ReadTimeout:    time.Minute,
		WriteTimeout:   time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/", srv.HandleHealthCheck)
	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/random/image", srv.HandleRandomImage)
	e.GET("/id/:id", srv.HandleImageByID)
	e.GET("/info/id/:id", srv.HandleInfoByID)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("starting http server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.httpd.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// StatusFor maps an error onto the response status.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := StatusFor(err)
	message := http.StatusText(code)
	if code < 500 {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			message = fmt.Sprintf("%v", he.Message)
		} else {
			message = err.Error()
		}
	} else {
		srv.logger.Warn("http internal error", "path", c.Path(), "err", err)
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, GenericStatus{Daemon: "birbfetcher", Status: "error", Message: message})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Daemon: "birbfetcher", Status: "ok"})
}

func (srv *Server) HandleRandomImage(c echo.Context) error {
	item, err := srv.items.Random(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return srv.writeBlob(c, "random", item)
}

func (srv *Server) HandleImageByID(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	item, err := srv.items.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return srv.writeBlob(c, "id", item)
}

func (srv *Server) HandleInfoByID(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	item, err := srv.items.Info(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewItemInfo(item))
}

// NewItemInfo renders item for JSON output.
func NewItemInfo(item domain.Item) ItemInfo {
	return ItemInfo{
		ID:          item.ID,
		Digest:      item.Digest.Hex(),
		Permalink:   item.Permalink,
		SourceURL:   item.SourceURL,
		ContentType: item.ContentType,
		Channel:     item.Channel,
		State:       string(item.State),
	}
}

func (srv *Server) writeBlob(c echo.Context, route string, item domain.Item) error {
	payload, err := srv.blobs.Read(c.Request().Context(), item.Digest)
	if err != nil {
		return err
	}
	metrics.ItemsServed.WithLabelValues(route).Inc()

	h := c.Response().Header()
	h.Set("X-Item-Id", strconv.FormatInt(item.ID, 10))
	h.Set("X-Item-Digest", item.Digest.Hex())
	h.Set("X-Item-Permalink", item.Permalink)
	return c.Blob(http.StatusOK, item.ContentType, payload)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
