package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/config"
	"github.com/maceip/acdp/pkg/counterstore"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/metrics"
	"github.com/maceip/acdp/pkg/server"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Starting ACDP Gateway")

	var (
		devMode = flag.Bool("dev", false, "relax configuration validation for local development")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *devMode {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("configuration validation failed: %v", err)
		}
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("configuration validation failed: %v", err)
		}
	}

	gatewayKey, err := loadOrGenerateEd25519Key(cfg.GatewayEd25519KeyPath, cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to load/generate gateway signing key: %v", err)
	}
	log.Printf("gateway signing key ready: public key = %s", crypto.EncodeHex(gatewayKey.PublicKey)[:16]+"...")

	arcKey, err := loadOrGenerateARCKey(cfg.ARCServerKeyPath)
	if err != nil {
		log.Fatalf("failed to load/generate ARC issuer key: %v", err)
	}
	log.Printf("ARC issuer key ready")

	store, err := buildCounterStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize counter store: %v", err)
	}
	log.Printf("counter store ready: driver=%s", cfg.CounterStoreDriver)

	gatewayServer := server.New(server.Config{
		GatewayKey:         gatewayKey,
		ARCKey:             arcKey,
		Store:              store,
		Audience:           cfg.GatewayAudience,
		TrustedIDPIssuers:  cfg.TrustedIDPIssuers,
		RateLimitPerMinute: cfg.RateLimitRequests,
		Logger:             log.New(log.Writer(), "[acdp-gateway] ", log.LstdFlags),
	})

	apiServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gatewayServer.Mux(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	healthServer := &http.Server{
		Addr:    cfg.HealthAddr,
		Handler: healthMux,
	}

	go func() {
		log.Printf("ACDP Gateway API listening on %s", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()
	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()
	go func() {
		log.Printf("health checks listening on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down ACDP Gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("counter store close error: %v", err)
		}
	}

	log.Printf("ACDP Gateway stopped")
}

func buildCounterStore(cfg *config.Config) (counterstore.Store, error) {
	switch cfg.CounterStoreDriver {
	case "postgres":
		return counterstore.NewPGStore(cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	default:
		return counterstore.NewMemStore(), nil
	}
}

// loadOrGenerateEd25519Key loads the gateway's credential-signing key from
// keyPath, generating and persisting a new one on first run.
func loadOrGenerateEd25519Key(keyPath, dataDir string) (*crypto.Ed25519KeyPair, error) {
	if keyPath == "" {
		keyPath = filepath.Join(dataDir, "gateway_ed25519.hex")
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		kp, err := crypto.GenerateEd25519KeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(crypto.EncodeHex(kp.PrivateKey)), 0600); err != nil {
			return nil, fmt.Errorf("save ed25519 key: %w", err)
		}
		log.Printf("generated new gateway signing key at %s", keyPath)
		return kp, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key: %w", err)
	}
	privBytes, err := crypto.DecodeHex(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key: %w", err)
	}
	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size: expected %d, got %d", ed25519.PrivateKeySize, len(privBytes))
	}
	priv := ed25519.PrivateKey(privBytes)
	pub := priv.Public().(ed25519.PublicKey)
	log.Printf("loaded existing gateway signing key from %s", keyPath)
	return &crypto.Ed25519KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// loadOrGenerateARCKey loads the gateway's ARC issuer keypair (x0, x1 and
// their public points) from keyPath as two newline-separated hex scalars,
// generating and persisting a new pair on first run.
func loadOrGenerateARCKey(keyPath string) (*arc.ServerKeyPair, error) {
	if keyPath == "" {
		keyPath = "./data/arc_server.hex"
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		kp, err := arc.NewServerKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate arc server key: %w", err)
		}
		contents := crypto.EncodeHex(kp.X0.Bytes()) + "\n" + crypto.EncodeHex(kp.X1.Bytes()) + "\n"
		if err := os.WriteFile(keyPath, []byte(contents), 0600); err != nil {
			return nil, fmt.Errorf("save arc server key: %w", err)
		}
		log.Printf("generated new ARC issuer key at %s", keyPath)
		return kp, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read arc server key: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		return nil, fmt.Errorf("arc server key file %s must contain exactly two hex lines", keyPath)
	}
	x0Bytes, err := crypto.DecodeHex(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, fmt.Errorf("decode x0: %w", err)
	}
	x1Bytes, err := crypto.DecodeHex(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("decode x1: %w", err)
	}
	x0 := new(big.Int).SetBytes(x0Bytes)
	x1 := new(big.Int).SetBytes(x1Bytes)
	g := crypto.BasePoint()
	log.Printf("loaded existing ARC issuer key from %s", keyPath)
	return &arc.ServerKeyPair{
		X0:    x0,
		X1:    x1,
		PubX0: crypto.ScalarMult(g, x0),
		PubX1: crypto.ScalarMult(g, x1),
	}, nil
}
