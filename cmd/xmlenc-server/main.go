// Command xmlenc-server runs the HTTP binding (internal/httpapi) as a
// long-lived service: load config, wire the key manager/resolver/audit
// sink it describes, log the hardware-acceleration status, and serve
// until signaled to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/xmlenc-gateway/internal/audit"
	"github.com/kenneth/xmlenc-gateway/internal/cipher"
	"github.com/kenneth/xmlenc-gateway/internal/config"
	"github.com/kenneth/xmlenc-gateway/internal/debug"
	"github.com/kenneth/xmlenc-gateway/internal/httpapi"
	"github.com/kenneth/xmlenc-gateway/internal/keymanager"
	"github.com/kenneth/xmlenc-gateway/internal/metrics"
	"github.com/kenneth/xmlenc-gateway/internal/middleware"
	"github.com/kenneth/xmlenc-gateway/internal/resolver"
	"github.com/kenneth/xmlenc-gateway/internal/s3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service YAML config")
	addr := flag.String("addr", ":8443", "HTTP listen address")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("loading config")
	}
	debug.InitFromLogLevel(cfg.LogLevel)
	if cfg.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)

	hwInfo := cipher.GetHardwareAccelerationInfo(&cfg.Hardware)
	logger.WithFields(logrusFields(hwInfo)).Info("hardware acceleration status")
	m.SetHardwareAccelerationStatus(runtime.GOARCH, cipher.IsHardwareAccelerationEnabled(cfg.Hardware))

	keyManager, err := buildKeyManager(cfg.KeyManager)
	if err != nil {
		logger.WithError(err).Fatal("configuring key manager")
	}

	var s3Client s3.Client
	if cfg.Backend.Provider != "" {
		s3Client, err = s3.NewClient(&cfg.Backend)
		if err != nil {
			logger.WithError(err).Fatal("configuring s3 backend")
		}
	}
	resv := resolver.New(s3Client)

	auditLogger, err := audit.NewLoggerFromConfig(cfg.Audit)
	if err != nil {
		logger.WithError(err).Fatal("configuring audit sink")
	}

	handler := httpapi.NewHandler(keyManager, resv, logger, m, auditLogger)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	var h http.Handler = router
	h = middleware.RecoveryMiddleware(logger)(h)
	h = middleware.LoggingMiddleware(logger)(h)

	srv := &http.Server{
		Addr:    *addr,
		Handler: h,
	}

	go func() {
		logger.WithField("addr", *addr).Info("xmlenc-server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// buildKeyManager wires the static keyring; a KMIP-backed manager needs
// an envelope store (Hint -> KeyEnvelope) this service has no place to
// keep, so it is rejected here rather than wired against a stub.
func buildKeyManager(cfg config.KeyManagerConfig) (keymanager.Resolver, error) {
	switch cfg.Type {
	case "static", "":
		keyring := keymanager.NewStaticKeyring(cfg.StaticKeys)
		return keyring.Resolver(), nil
	case "kmip":
		return nil, fmt.Errorf("key manager: kmip requires an envelope store this entrypoint does not provide")
	default:
		return nil, fmt.Errorf("key manager: unknown type %q", cfg.Type)
	}
}

func logrusFields(m map[string]interface{}) logrus.Fields {
	f := make(logrus.Fields, len(m))
	for k, v := range m {
		f[k] = v
	}
	return f
}
