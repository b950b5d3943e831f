package cli

import (
	"database/sql"

	"github.com/driftguard/driftguard/internal/classifier"
	"github.com/driftguard/driftguard/internal/config"
	"github.com/driftguard/driftguard/internal/detector"
	"github.com/driftguard/driftguard/internal/domain/notification"
	"github.com/driftguard/driftguard/internal/integrations"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/validator"
	"github.com/driftguard/driftguard/internal/providers"
	"github.com/driftguard/driftguard/internal/recommender"
	"github.com/driftguard/driftguard/internal/repository/postgres"
	"github.com/driftguard/driftguard/internal/services"
	"github.com/driftguard/driftguard/internal/worker"
	"github.com/driftguard/driftguard/migrations"
)

// App wires configuration, storage and services for the CLI commands
type App struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *sql.DB

	Environments    *services.EnvironmentService
	IaC             *services.IaCService
	Scans           *services.ScanService
	Drifts          *services.DriftService
	Analyses        *services.AnalysisService
	Recommendations *services.RecommendationService
	Scheduler       *worker.Scheduler
}

// newApp loads configuration, opens the database, runs pending migrations
// and constructs the service graph
func newApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(db, migrations.GetFS()); err != nil {
		db.Close()
		return nil, err
	}

	v := validator.New()

	envRepo := postgres.NewEnvironmentRepository(db)
	iacRepo := postgres.NewIaCRepository(db)
	driftRepo := postgres.NewDriftRepository(db)
	analysisRepo := postgres.NewAnalysisRepository(db)
	recRepo := postgres.NewRecommendationRepository(db)
	store := postgres.NewStateStore(db, iacRepo)

	recorder := services.NewLogRecorder(log)

	var notifier notification.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = services.NewWebhookNotifier(cfg.Notify.WebhookURL)
	} else {
		notifier = services.NewLogNotifier(log)
	}

	collectors := []services.Collector{
		providers.NewAWSCollector(providers.AWSCredentials{}, cfg.Provider.RateLimit, log),
		providers.NewGCPCollector(providers.GCPCredentials{ProjectID: cfg.Provider.GCPProjectID}, cfg.Provider.RateLimit, log),
	}

	differ := detector.NewDiffer(cfg.Detector.SensitivePatterns)

	// One lock set for every drift lifecycle transition: scans and resolves
	// of the same resource must exclude each other
	locks := services.NewKeyedMutex()

	scans := services.NewScanService(
		envRepo, store, driftRepo, differ, collectors,
		recorder, notifier, log,
		cfg.Scan.Workers, cfg.Notify.CriticalThreshold,
		locks,
	)

	drifts := services.NewDriftService(driftRepo, recorder, log, locks)

	var explainer services.Explainer
	if e := integrations.NewOpenAIExplainer(cfg.Provider.OpenAIAPIKey); e != nil {
		explainer = e
	}

	analyses := services.NewAnalysisService(
		analysisRepo, driftRepo,
		classifier.NewRuleClassifier(), explainer, recorder, log,
		cfg.Scan.MaintenanceWindowStart, cfg.Scan.MaintenanceWindowEnd,
		cfg.Scan.AutomationActors,
	)

	recs := services.NewRecommendationService(
		recRepo, analysisRepo, driftRepo,
		recommender.NewEngine(cfg.Scan.RecommendationTTL),
		recorder, log,
	)

	return &App{
		Config:          cfg,
		Logger:          log,
		DB:              db,
		Environments:    services.NewEnvironmentService(envRepo, v, log),
		IaC:             services.NewIaCService(iacRepo, v, log),
		Scans:           scans,
		Drifts:          drifts,
		Analyses:        analyses,
		Recommendations: recs,
		Scheduler:       worker.NewScheduler(scans, recs, cfg.Scan.Schedule, log),
	}, nil
}

// Close releases the app's resources
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
