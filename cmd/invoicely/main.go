package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/invoicely/db"
	accountmod "github.com/dmitrymomot/invoicely/modules/account"
	"github.com/dmitrymomot/invoicely/modules/invoicing"
	"github.com/dmitrymomot/invoicely/pkg/clientip"
	"github.com/dmitrymomot/invoicely/pkg/config"
	"github.com/dmitrymomot/invoicely/pkg/email"
	"github.com/dmitrymomot/invoicely/pkg/httpserver"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/pg"
	"github.com/dmitrymomot/invoicely/pkg/ratelimit"
	"github.com/dmitrymomot/invoicely/pkg/redis"
	"github.com/dmitrymomot/invoicely/pkg/requestid"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/billing"
	"github.com/dmitrymomot/invoicely/svc/invoice"
	"github.com/dmitrymomot/invoicely/svc/payout"
	"github.com/dmitrymomot/invoicely/svc/repository"
)

const serviceName = "invoicely"

type appConfig struct {
	Env         string        `env:"APP_ENV" envDefault:"development"`
	BaseURL     string        `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	TokenSecret string        `env:"TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"720h"`
	LogLevel    string        `env:"LOG_LEVEL"`

	AuthRateLimit   int `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"10"`
	PublicRateLimit int `env:"RATE_LIMIT_PUBLIC_PER_MINUTE" envDefault:"60"`

	// Number of proxies appending to X-Forwarded-For; 0 trusts RemoteAddr only.
	TrustedProxies  int    `env:"TRUSTED_PROXIES" envDefault:"0"`
	TrustedIPHeader string `env:"TRUSTED_IP_HEADER"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, serviceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			accountmod.LoggerExtractor(),
		),
	}
	if cfg.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			opts = append(opts, logger.WithLevel(lvl))
		}
	}
	log := logger.New(opts...)
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("invoicely stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	var (
		pgCfg      pg.Config
		redisCfg   redis.Config
		httpCfg    httpserver.Config
		emailCfg   email.Config
		billingCfg billing.Config
	)
	if err := errors.Join(
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&httpCfg),
		config.Load(&emailCfg),
		config.Load(&billingCfg),
	); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, db.Migrations(), pgCfg, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	mailer, err := email.New(emailCfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := repository.NewPostgres(pool)
	stripe := billing.NewStripeProvider(billingCfg, nil)

	accounts := account.NewService(store, cfg.TokenSecret,
		account.WithLogger(log.With(logger.Component("account"))),
		account.WithTokenTTL(cfg.TokenTTL),
	)
	invoices := invoice.NewService(store, store, stripe, mailer,
		invoice.WithLogger(log.With(logger.Component("invoice"))),
		invoice.WithBaseURL(cfg.BaseURL),
	)
	subscriptions := billing.NewService(stripe, store, invoices, billingCfg.Prices(),
		billing.WithLogger(log.With(logger.Component("billing"))),
		billing.WithMetrics(billing.NewMetrics(reg)),
		billing.WithEventLog(billing.NewRedisEventLog(rdb, billingCfg.EventTTL)),
		billing.WithBaseURL(cfg.BaseURL),
	)
	payouts := payout.NewService(store, stripe,
		payout.WithLogger(log.With(logger.Component("payout"))),
		payout.WithBaseURL(cfg.BaseURL),
	)

	limits := ratelimit.NewRedisStore(rdb)
	authLimit, err := rateLimit(limits, "auth", cfg.AuthRateLimit, log)
	if err != nil {
		return err
	}
	publicLimit, err := rateLimit(limits, "public", cfg.PublicRateLimit, log)
	if err != nil {
		return err
	}

	ips := clientip.NewResolver(
		clientip.WithTrustedProxies(cfg.TrustedProxies),
		clientip.WithTrustedHeader(cfg.TrustedIPHeader),
	)
	r := invoicing.NewRouter(accounts, invoicing.Routes{
		Auth:     accountmod.NewPasswordService(accounts, log),
		Me:       accountmod.NewSubscriptionService(accounts, log),
		Invoices: invoicing.NewInvoiceService(invoices, log),
		Stats:    invoicing.NewStatsService(invoices, log),
		Billing:  invoicing.NewBillingService(subscriptions, log),
		Payouts:  invoicing.NewPayoutService(payouts, log),
		Public:   invoicing.NewPublicService(invoices, log),
		Webhook:  invoicing.NewWebhookService(subscriptions, log),

		AuthLimit:   authLimit,
		PublicLimit: publicLimit,
	}, requestid.Middleware, ips.Middleware, middleware.Recoverer)
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool), redis.Healthcheck(rdb)))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if err := scheduleJobs(ctx, scheduler, log,
		job{name: "monthly_usage_reset", spec: monthlyUsageResetSpec, run: accounts.ResetMonthlyUsage},
		job{name: "overdue_report", spec: overdueReportSpec, run: invoices.ReportOverdue},
	); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	srv := httpserver.New(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

func rateLimit(store ratelimit.Store, name string, perMinute int, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	l, err := ratelimit.New(store, name, perMinute, time.Minute)
	if err != nil {
		return nil, err
	}
	return ratelimit.Middleware(l,
		ratelimit.WithOnLimitReached(invoicing.TooManyRequests),
		ratelimit.WithOnError(func(r *http.Request, err error) {
			log.WarnContext(r.Context(), "rate limit store unavailable", logger.Error(err))
		}),
	), nil
}
