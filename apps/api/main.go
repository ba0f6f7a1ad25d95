package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	defaultMaxUploadBytes      = 10 * 1024 * 1024
	defaultGeocoderInterval    = time.Second
	defaultViewLinkTTL         = 7 * 24 * time.Hour
	defaultUploadRateLimit     = 6
	uploadRateLimitWindow      = 5 * time.Minute
	rateLimiterCleanupInterval = time.Minute
	geocoderHTTPTimeout        = 10 * time.Second
	defaultGeocoderUserAgent   = "south_korea_map_app"
	defaultNominatimBaseURL    = "https://nominatim.openstreetmap.org"
	defaultMapboxBaseURL       = "https://api.mapbox.com"
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
)

var geocoderProviders = []string{"nominatim", "mapbox", "fallback"}

type Config struct {
	Addr                string
	Env                 string
	DataRoot            string
	AppSigningSecret    string
	GeocoderProvider    string
	GeocoderUserAgent   string
	GeocoderMinInterval time.Duration
	NominatimBaseURL    string
	MapboxAccessToken   string
	MaxUploadBytes      int64
	ViewLinkTTL         time.Duration
	UploadRateLimit     int
}

type App struct {
	cfg *Config
	log *slog.Logger

	geocoder  Geocoder
	artifacts *ArtifactStore
	pages     *pageRenderer
	now       func() time.Time

	rateLimiterMu sync.Mutex
	rateBuckets   map[string]rateBucket
}

type rateBucket struct {
	start time.Time
	count int
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	app, err := newApp(cfg, logger)
	if err != nil {
		panic(err)
	}

	logger.Info(
		"runtime configuration",
		"env",
		cfg.Env,
		"addr",
		cfg.Addr,
		"data_root",
		cfg.DataRoot,
		"geocoder",
		cfg.GeocoderProvider,
		"geocoder_min_interval",
		cfg.GeocoderMinInterval.String(),
	)

	if len(os.Args) > 1 && os.Args[1] == "render" {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: render <workbook.xlsx> [romanized|korean]")
			os.Exit(2)
		}
		language := ""
		if len(os.Args) > 3 {
			language = os.Args[3]
		}
		if err := app.renderWorkbookFile(context.Background(), os.Args[2], language); err != nil {
			logger.Error("render failed", "file", os.Args[2], "err", err)
			os.Exit(1)
		}
		return
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	app.startRateLimiterCleanup(cleanupCtx, rateLimiterCleanupInterval)

	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(app.loggingMiddleware())
	app.registerRoutes(r)

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

func newApp(cfg *Config, logger *slog.Logger) (*App, error) {
	store, err := NewArtifactStore(cfg.DataRoot)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: geocoderHTTPTimeout}
	pacer := NewRatePacer(cfg.GeocoderMinInterval)

	nominatim := &NominatimGeocoder{
		BaseURL:   cfg.NominatimBaseURL,
		UserAgent: cfg.GeocoderUserAgent,
		Client:    httpClient,
		Pacer:     pacer,
		Logger:    logger,
	}
	mapbox := &MapboxGeocoder{
		BaseURL:     defaultMapboxBaseURL,
		AccessToken: cfg.MapboxAccessToken,
		Client:      httpClient,
		Pacer:       pacer,
	}

	var geocoder Geocoder
	switch cfg.GeocoderProvider {
	case "mapbox":
		geocoder = mapbox
	case "fallback":
		geocoder = &FallbackGeocoder{Primary: mapbox, Secondary: nominatim}
	default:
		geocoder = nominatim
	}

	return &App{
		cfg:         cfg,
		log:         logger,
		geocoder:    geocoder,
		artifacts:   store,
		pages:       newPageRenderer(cfg.Env),
		now:         time.Now,
		rateBuckets: make(map[string]rateBucket),
	}, nil
}

func (a *App) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/", a.uploadFormHandler)
	r.POST("/", a.requireUploadQuota(), a.uploadSubmitHandler)
	r.GET("/view", a.viewIndexHandler)
	r.GET("/view/:id", a.viewMapHandler)
	r.GET("/maps/:id", a.mapDocumentHandler)
	r.GET("/maps/:id/summary.pdf", a.mapSummaryPDFHandler)
	r.GET("/maps/:id/export", a.mapExportHandler)
}

func loadConfig() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	provider := strings.ToLower(valueOrDefault("GEOCODER_PROVIDER", "nominatim"))
	if !containsString(geocoderProviders, provider) {
		return nil, fmt.Errorf("GEOCODER_PROVIDER must be one of %s", strings.Join(geocoderProviders, ", "))
	}

	cfg := &Config{
		Addr:                valueOrDefault("GIN_ADDR", ":8080"),
		Env:                 env,
		DataRoot:            filepath.Clean(valueOrDefault("DATA_ROOT", "./data")),
		AppSigningSecret:    secret,
		GeocoderProvider:    provider,
		GeocoderUserAgent:   valueOrDefault("GEOCODER_USER_AGENT", defaultGeocoderUserAgent),
		GeocoderMinInterval: defaultGeocoderInterval,
		NominatimBaseURL:    strings.TrimRight(valueOrDefault("NOMINATIM_BASE_URL", defaultNominatimBaseURL), "/"),
		MapboxAccessToken:   strings.TrimSpace(os.Getenv("MAPBOX_ACCESS_TOKEN")),
		MaxUploadBytes:      defaultMaxUploadBytes,
		ViewLinkTTL:         defaultViewLinkTTL,
		UploadRateLimit:     defaultUploadRateLimit,
	}

	if provider != "nominatim" && cfg.MapboxAccessToken == "" {
		return nil, fmt.Errorf("MAPBOX_ACCESS_TOKEN is required for GEOCODER_PROVIDER=%s", provider)
	}

	if raw := strings.TrimSpace(os.Getenv("GEOCODER_MIN_INTERVAL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("GEOCODER_MIN_INTERVAL must be a valid duration")
		}
		if parsed < 0 {
			return nil, fmt.Errorf("GEOCODER_MIN_INTERVAL must be >= 0")
		}
		cfg.GeocoderMinInterval = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer")
		}
		cfg.MaxUploadBytes = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("VIEW_LINK_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("VIEW_LINK_TTL must be a positive duration")
		}
		cfg.ViewLinkTTL = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("UPLOAD_RATE_LIMIT")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("UPLOAD_RATE_LIMIT must be a positive integer")
		}
		cfg.UploadRateLimit = parsed
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

// writeAPIError answers with the plain-text message the upload form shows to users.
func (a *App) writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.String(apiErr.Status, apiErr.Message)
		return
	}

	a.log.Error("request failed", "path", c.Request.URL.Path, "err", err)
	c.String(http.StatusInternalServerError, "Internal server error.")
}
