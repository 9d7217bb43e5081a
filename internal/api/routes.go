package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/serasa-adapter/internal/store"
)

// NATSStatus is the part of *nats.Conn used by the health check.
type NATSStatus interface {
	IsConnected() bool
	FlushTimeout(timeout time.Duration) error
}

func RegisterRoutes(app *fiber.App, nc NATSStatus, st store.Store, reportHandler *ReportHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil || !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		if st == nil {
			checks["store"] = "disabled"
		} else {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				checks["store"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/reports", reportHandler.CreateReportFetch)
	v1.Get("/clients/:clientId/reports/person/:documentId", reportHandler.GetPersonReport)
	v1.Get("/clients/:clientId/reports/person/:documentId/last", reportHandler.GetLastFetch)
}
