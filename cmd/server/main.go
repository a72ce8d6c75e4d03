package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kulaginds/qoi-html5/internal/config"
	"github.com/kulaginds/qoi-html5/internal/handler"
	"github.com/kulaginds/qoi-html5/internal/logging"
	"github.com/kulaginds/qoi-html5/web"
)

const (
	appName    = "QOI HTML5 Viewer"
	appVersion = "v1.0.0"
)

func main() {
	hostFlag := flag.String("host", "", "server listen host")
	portFlag := flag.String("port", "", "server listen port")
	logLevelFlag := flag.String("log-level", "", "log level (debug, info, warn, error)")
	maxPixelsFlag := flag.Uint64("max-pixels", 0, "maximum pixel count a single decode may allocate")
	helpFlag := flag.Bool("help", false, "show help")
	versionFlag := flag.Bool("version", false, "show version")

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *versionFlag {
		showVersion()
		return
	}

	opts := config.LoadOptions{
		Host:      strings.TrimSpace(*hostFlag),
		Port:      strings.TrimSpace(*portFlag),
		LogLevel:  strings.TrimSpace(*logLevelFlag),
		MaxPixels: *maxPixelsFlag,
	}

	cfg, err := config.LoadWithOverrides(opts)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.SetLevelFromString(cfg.Logging.Level)

	server, err := createServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	logging.Info("starting server on %s:%s (TLS=%t, max pixels=%d)",
		cfg.Server.Host, cfg.Server.Port, cfg.Security.EnableTLS, cfg.Decoder.MaxPixels)

	if err := startServer(server, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalln(err)
	}
}

func createServer(cfg *config.Config) (*http.Server, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	staticFS, err := web.DistFS()
	if err != nil {
		return nil, fmt.Errorf("embedded web assets: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/convert", handler.Convert)
	mux.HandleFunc("/view", handler.View)

	h := securityHeadersMiddleware(corsMiddleware(mux, cfg.Security.AllowedOrigins))
	h = requestLoggingMiddleware(h)

	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Allow inline scripts/styles for the single-page viewer
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isOriginAllowed(origin, allowedOrigins, r.Host) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowedOrigins []string, host string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	if len(allowedOrigins) == 0 {
		return strings.Contains(origin, host)
	}

	return false
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Info("%s %s %s %s", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}

func startServer(server *http.Server, cfg *config.Config) error {
	if server == nil {
		return fmt.Errorf("server is nil")
	}

	var err error
	if cfg != nil && cfg.Security.EnableTLS {
		err = server.ListenAndServeTLS(cfg.Security.TLSCertFile, cfg.Security.TLSKeyFile)
	} else {
		err = server.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: qoi-html5 [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host        Set server listen host (default 0.0.0.0)")
	fmt.Println("  -port        Set server listen port (default 8080)")
	fmt.Println("  -log-level   Set log level (debug, info, warn, error)")
	fmt.Println("  -max-pixels  Cap the pixel count a single decode may allocate")
	fmt.Println("  -version     Show version information")
	fmt.Println("  -help        Show this help message")
	fmt.Println("ENVIRONMENT VARIABLES: SERVER_HOST, SERVER_PORT, LOG_LEVEL, QOI_MAX_PIXELS, QOI_MAX_REQUEST_BYTES, QOI_ALLOW_GZIP, ALLOWED_ORIGINS")
	fmt.Println("EXAMPLES: qoi-html5 -host 0.0.0.0 -port 8080")
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
	fmt.Println("Format: QOI (Quite OK Image), decode only")
}
