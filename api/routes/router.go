package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marondal/donation-engine/api/controllers"
	"github.com/marondal/donation-engine/api/middleware"
	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/internal/photos"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/internal/settlement"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/internal/verification"
	"github.com/marondal/donation-engine/pkg/config"
	"github.com/marondal/donation-engine/pkg/db"
	"github.com/marondal/donation-engine/pkg/enums"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/redis"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Farms        farms.Service
	Ledger       ledger.Service
	Receipts     receipts.Service
	Verification verification.Service
	Settlement   settlement.Service
	Photos       photos.Service
	TrustScore   trustscore.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Ping: dbP.Ping},
			controllers.ReadinessCheck{Name: "redis", Ping: redisClient.Ping},
		))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/farms", func(r chi.Router) {
			r.Post("/", controllers.FarmRegister(svcs.Farms, logg))
			r.Get("/", controllers.FarmList(svcs.Farms, logg))
			r.Route("/{farmID}", func(r chi.Router) {
				r.Get("/", controllers.FarmGet(svcs.Farms, cfg.Token.Rate(), logg))
				r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
					Patch("/status", controllers.FarmSetStatus(svcs.Farms, logg))

				r.Get("/ledger", controllers.FarmLedgerHistory(svcs.Ledger, logg))
				r.Get("/receipts", controllers.FarmReceiptsList(svcs.Receipts, logg))

				r.Route("/photos", func(r chi.Router) {
					r.Post("/", controllers.PhotoBatchSubmit(svcs.Photos, logg))
					r.Get("/", controllers.PhotoBatchGet(svcs.Photos, logg))
					r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
						Post("/penalty", controllers.PhotoPenaltyPost(svcs.Photos, logg))
				})

				r.Route("/trust-score", func(r chi.Router) {
					r.Get("/history", controllers.TrustScoreHistory(svcs.TrustScore, logg))
					r.Get("/monthly-average", controllers.TrustScoreMonthlyAverage(svcs.TrustScore, logg))
				})
			})
		})

		r.Post("/donations", controllers.DonationRecord(svcs.Ledger, logg))

		r.Route("/receipts", func(r chi.Router) {
			r.Post("/", controllers.ReceiptSubmit(svcs.Receipts, logg))
			r.Route("/{receiptID}", func(r chi.Router) {
				r.Get("/", controllers.ReceiptGet(svcs.Receipts, logg))
				r.Post("/verify", controllers.ReceiptVerify(svcs.Verification, logg))
				r.Post("/settle", controllers.ReceiptSettle(svcs.Settlement, logg))
			})
		})

		r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
			Get("/settlements/partial-failures", controllers.SettlementPartialFailures(svcs.Settlement, logg))
	})

	return r
}
