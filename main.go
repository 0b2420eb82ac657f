package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"hivegrid/internal/audit"
	"hivegrid/internal/auth"
	"hivegrid/internal/bootstrap"
	escrowapp "hivegrid/internal/escrow/application"
	escrowdomain "hivegrid/internal/escrow/domain"
	escrowmem "hivegrid/internal/escrow/infrastructure/memory"
	escrowpg "hivegrid/internal/escrow/infrastructure/postgres"
	escrowhttp "hivegrid/internal/escrow/interfaces/http"
	"hivegrid/internal/eventing"
	"hivegrid/internal/observability/metrics"
	"hivegrid/internal/registry"
	hiveapp "hivegrid/internal/registry/hives/application"
	hivedomain "hivegrid/internal/registry/hives/domain"
	hivemem "hivegrid/internal/registry/hives/infrastructure/memory"
	hivepg "hivegrid/internal/registry/hives/infrastructure/postgres"
	hivehttp "hivegrid/internal/registry/hives/interfaces/http"
	meterapp "hivegrid/internal/registry/meters/application"
	meterdomain "hivegrid/internal/registry/meters/domain"
	metermem "hivegrid/internal/registry/meters/infrastructure/memory"
	meterpg "hivegrid/internal/registry/meters/infrastructure/postgres"
	meterhttp "hivegrid/internal/registry/meters/interfaces/http"
	tariffapp "hivegrid/internal/registry/tariffs/application"
	tariffdomain "hivegrid/internal/registry/tariffs/domain"
	tariffmem "hivegrid/internal/registry/tariffs/infrastructure/memory"
	tariffpg "hivegrid/internal/registry/tariffs/infrastructure/postgres"
	tariffhttp "hivegrid/internal/registry/tariffs/interfaces/http"
	settlementapp "hivegrid/internal/settlement/application"
	settlementdomain "hivegrid/internal/settlement/domain"
	settlementmem "hivegrid/internal/settlement/infrastructure/memory"
	settlementpg "hivegrid/internal/settlement/infrastructure/postgres"
	settlementhttp "hivegrid/internal/settlement/interfaces/http"
	"hivegrid/internal/token"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var (
		db          *sql.DB
		meterStore  meterdomain.Registry
		hiveStore   hivedomain.Registry
		tariffStore tariffdomain.Registry
		escrowStore escrowdomain.Repository
		records     settlementdomain.RecordRepository
		journal     settlementdomain.Journal
		auditor     audit.Logger
	)

	switch cfg.StoreBackend {
	case "postgres":
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		meterStore = meterpg.NewRepository(db)
		hiveStore = hivepg.NewRepository(db)
		tariffStore = tariffpg.NewRepository(db)
		escrowStore = escrowpg.NewRepository(db)
		records = settlementpg.NewRecordRepository(db)
		journal = settlementpg.NewJournal(db)
		auditor = audit.NewRepository(db)
	case "memory":
		meterStore = metermem.NewRegistry()
		hiveStore = hivemem.NewRegistry()
		tariffStore = tariffmem.NewRegistry()
		escrowStore = escrowmem.NewRepository()
		records = settlementmem.NewRecordRepository()
		journal = settlementmem.NewJournal()
		auditor = audit.NewMemoryLogger()
	default:
		logger.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	metrics.Init()

	ledger := token.NewMemoryLedger()

	seed, err := bootstrap.LoadSeed(cfg.SeedFile)
	if err != nil {
		logger.Fatalf("seed load error: %v", err)
	}
	if err := bootstrap.Apply(context.Background(), seed, bootstrap.Stores{
		Tariffs: tariffStore,
		Hives:   hiveStore,
		Meters:  meterStore,
		Ledger:  ledger,
	}); err != nil {
		logger.Fatalf("seed apply error: %v", err)
	}
	tariffOwner, err := seed.TariffOwnerAddress()
	if err != nil {
		logger.Fatalf("tariff owner error: %v", err)
	}

	vaultAccount, err := registry.ParseAddress(cfg.VaultAddress)
	if err != nil {
		logger.Fatalf("vault address error: %v", err)
	}

	meterService, err := meterapp.NewService(meterStore, auditor)
	if err != nil {
		logger.Fatalf("meter service error: %v", err)
	}
	hiveService, err := hiveapp.NewService(hiveStore, auditor)
	if err != nil {
		logger.Fatalf("hive service error: %v", err)
	}
	tariffService, err := tariffapp.NewService(tariffStore, tariffOwner, auditor)
	if err != nil {
		logger.Fatalf("tariff service error: %v", err)
	}
	bus := eventing.NewInMemoryBus()
	eventing.On(bus, func(ctx context.Context, evt eventing.SettlementSettled) error {
		logger.Printf("slot settled: meter=%s hive=%s slot=%d net=%d", evt.Meter, evt.Hive, evt.Slot, evt.NetAmount)
		return nil
	})
	eventing.On(bus, func(ctx context.Context, evt eventing.EscrowDeposited) error {
		logger.Printf("escrow deposit: account=%s amount=%d pool=%t", evt.Account, evt.Amount, evt.OwnerPool)
		return nil
	})
	eventing.On(bus, func(ctx context.Context, evt eventing.EscrowWithdrawn) error {
		logger.Printf("escrow withdrawal: meter=%s wallet=%s amount=%d", evt.Meter, evt.Wallet, evt.Amount)
		return nil
	})

	vault, err := escrowapp.NewVault(vaultAccount, escrowStore, ledger, meterStore, hiveStore, bus, auditor)
	if err != nil {
		logger.Fatalf("vault error: %v", err)
	}

	engine, err := settlementapp.NewEngine(meterStore, hiveStore, tariffStore, vault, records, journal, settlementdomain.SystemClock{}, bus, auditor)
	if err != nil {
		logger.Fatalf("settlement engine error: %v", err)
	}

	meterHandler, err := meterhttp.NewHandler(meterService)
	if err != nil {
		logger.Fatalf("meter handler error: %v", err)
	}
	hiveHandler, err := hivehttp.NewHandler(hiveService)
	if err != nil {
		logger.Fatalf("hive handler error: %v", err)
	}
	tariffHandler, err := tariffhttp.NewHandler(tariffService)
	if err != nil {
		logger.Fatalf("tariff handler error: %v", err)
	}
	escrowHandler, err := escrowhttp.NewHandler(vault)
	if err != nil {
		logger.Fatalf("escrow handler error: %v", err)
	}
	settlementHandler, err := settlementhttp.NewHandler(engine)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/meters", meterHandler)
	mux.Handle("/api/v1/meters/", meterHandler)
	mux.Handle("/api/v1/hives", hiveHandler)
	mux.Handle("/api/v1/hives/", hiveHandler)
	mux.Handle("/api/v1/tariffs", tariffHandler)
	mux.Handle("/api/v1/tariffs/", tariffHandler)
	mux.Handle("/api/v1/escrow/", escrowHandler)
	mux.Handle("/api/v1/settlements", settlementHandler)
	mux.Handle("/api/v1/settlements/", settlementHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	HTTPAddr     string
	StoreBackend string
	DatabaseURL  string
	JWTSecret    string
	SeedFile     string
	VaultAddress string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		StoreBackend: getenvDefault("STORE_BACKEND", "memory"),
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		SeedFile:     getenvDefault("SEED_FILE", ""),
		VaultAddress: getenvDefault("VAULT_ADDRESS", "0x00000000000000000000000000000000000ec404"),
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required with STORE_BACKEND=postgres")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
