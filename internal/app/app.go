// Package app builds the object graph shared by cmd/server and cmd/worker:
// database and Redis connections, repositories, services, the SendGrid
// client and the campaign scheduler.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dashboard/internal/api"
	"github.com/ignite/campaign-dashboard/internal/auth"
	"github.com/ignite/campaign-dashboard/internal/config"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/distlock"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/ratelimit"
	"github.com/ignite/campaign-dashboard/internal/repository/postgres"
	"github.com/ignite/campaign-dashboard/internal/sendgrid"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
	"github.com/ignite/campaign-dashboard/internal/service/dispatch"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
	"github.com/ignite/campaign-dashboard/internal/service/template"
	"github.com/ignite/campaign-dashboard/internal/storage"
	"github.com/ignite/campaign-dashboard/internal/worker"
)

// App holds the wired dependencies of one process.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client // nil when Redis is not configured or unreachable
	Metrics *metrics.Metrics
	Store   storage.Store // nil when storage failed to initialize

	Contacts     *contact.Service
	Tags         *tag.Service
	Templates    *template.Service
	Campaigns    *campaign.Service
	Suppressions *suppression.Service
	Delivery     *delivery.Service
	Dispatch     *dispatch.Service
	Jobs         *postgres.JobRepo
	Sender       *sendgrid.Client
}

// New connects to Postgres (required) and Redis (optional) and builds every
// service. Close releases the connections.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, fmt.Errorf("quota timezone: %w", err)
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		DB:      db,
		Redis:   openRedis(ctx, cfg.Redis.URL),
		Metrics: metrics.New(),
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("app: storage unavailable, remote imports disabled", "type", cfg.Storage.Type, "error", err)
	} else {
		a.Store = store
	}

	contactRepo := postgres.NewContactRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	a.Jobs = postgres.NewJobRepo(db)

	a.Contacts = contact.NewService(contactRepo)
	a.Tags = tag.NewService(postgres.NewTagRepo(db))
	a.Templates = template.NewService(postgres.NewTemplateRepo(db), a.Contacts)
	a.Campaigns = campaign.NewService(postgres.NewCampaignRepo(db))
	a.Suppressions = suppression.NewService(suppressionRepo)
	a.Delivery = delivery.NewService(postgres.NewDeliveryRepo(db),
		delivery.WithMetrics(a.Metrics),
		delivery.WithQuota(cfg.Quota.DailyLimit, loc),
		delivery.WithStatsSources(a.Contacts, a.Suppressions, a.Campaigns),
	)

	a.Sender = sendgrid.NewClient(sendgrid.Config{
		APIKey:        cfg.SendGrid.APIKey,
		BaseURL:       cfg.SendGrid.BaseURL,
		FromEmail:     cfg.SendGrid.FromEmail,
		FromName:      cfg.SendGrid.FromName,
		Timeout:       cfg.SendGrid.Timeout(),
		MaxRetries:    cfg.SendGrid.MaxRetries,
		RatePerSecond: cfg.SendGrid.RatePerSecond,
		Sandbox:       cfg.SendGrid.Sandbox,
		ClickTracking: cfg.SendGrid.ClickTracking,
		OpenTracking:  cfg.SendGrid.OpenTracking,
	}, sendgrid.WithMetrics(a.Metrics))

	a.Dispatch = dispatch.NewService(dispatch.Deps{
		Sender:       a.Sender,
		Campaigns:    a.Campaigns,
		Templates:    a.Templates,
		Contacts:     a.Contacts,
		Suppressions: a.Suppressions,
		Log:          a.Delivery,
		Jobs:         a.Jobs,
		Recipients:   postgres.NewRecipientRepo(db),
		Metrics:      a.Metrics,
		ClaimTimeout: cfg.Scheduler.Lease(),
	})

	return a, nil
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openRedis returns nil when url is empty or the server does not answer.
func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		logger.Info("app: redis not configured, using in-process rate limits and postgres advisory locks")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(url); err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("app: redis unreachable, falling back to local state", "error", err)
		client.Close()
		return nil
	}
	return client
}

// RedisCmdable returns the Redis client as an interface, or a nil interface
// when Redis is off.
func (a *App) RedisCmdable() redis.Cmdable {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

// Limiter returns the shared Redis limiter backed by an in-process one, or
// only the in-process limiter without Redis. The in-process janitor stops
// with ctx.
func (a *App) Limiter(ctx context.Context) ratelimit.Limiter {
	mem := ratelimit.NewMemoryLimiter()
	mem.StartJanitor(ctx, time.Minute)
	if a.Redis == nil {
		return mem
	}
	return ratelimit.Fallback{Primary: ratelimit.NewRedisLimiter(a.Redis), Secondary: mem}
}

// Verifier returns the bearer token verifier selected by the auth mode.
func (a *App) Verifier() auth.Verifier {
	c := a.Config.Auth
	if c.Mode == "supabase" {
		return auth.NewSupabaseVerifier(c.SupabaseURL, c.SupabaseAnonKey, nil)
	}
	return auth.NewJWTVerifier(c.JWTSecret, c.JWTAudience)
}

// Scheduler builds the campaign scheduler. Only the instance holding the
// scheduler lock polls.
func (a *App) Scheduler() *worker.CampaignScheduler {
	c := a.Config.Scheduler
	lock := distlock.NewLock(a.RedisCmdable(), a.DB, worker.SchedulerLockKey, 2*c.Interval())
	return worker.NewCampaignScheduler(a.Jobs, a.Dispatch, lock,
		worker.WithPollInterval(c.Interval()),
		worker.WithLease(c.Lease()),
		worker.WithMaxAttempts(c.MaxAttempts),
		worker.WithSchedulerMetrics(a.Metrics),
	)
}

// APIServices returns the services behind the HTTP handlers.
func (a *App) APIServices() api.Services {
	return api.Services{
		Contacts:     a.Contacts,
		Tags:         a.Tags,
		Templates:    a.Templates,
		Campaigns:    a.Campaigns,
		Jobs:         a.Jobs,
		Suppressions: a.Suppressions,
		Delivery:     a.Delivery,
		Dispatch:     a.Dispatch,
		Imports:      a.Store,
		ReportBucket: a.Config.Storage.Bucket,
	}
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}
