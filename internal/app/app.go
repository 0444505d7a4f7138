package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joel710/agriflow/internal/dal/postgres"
	"github.com/joel710/agriflow/internal/dal/rabbitmq"
	"github.com/joel710/agriflow/internal/dal/uow"
	"github.com/joel710/agriflow/internal/gateway/mobilemoney"
	"github.com/joel710/agriflow/internal/otel"
	"github.com/joel710/agriflow/internal/service/services/deliverysvc"
	"github.com/joel710/agriflow/internal/service/services/ordersvc"
	"github.com/joel710/agriflow/internal/service/services/paymentsvc"
	httptransport "github.com/joel710/agriflow/internal/transport/http"
	outboxworker "github.com/joel710/agriflow/internal/worker/outbox"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	paymentSvc     *paymentsvc.PaymentService
	deliverySvc    *deliverysvc.DeliveryService
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	gateways := make(map[string]paymentsvc.Gateway)
	for _, provider := range viper.GetStringSlice("payment.gateway_providers") {
		gateways[provider] = mobilemoney.MustNewGateway(provider)
	}

	paymentSvc := paymentsvc.MustNewPaymentService(
		paymentsvc.WithPostgresClient(postgresClient),
		paymentsvc.WithGateways(gateways),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithPaymentMethodCheck(paymentSvc.KnownMethod),
	)

	deliverySvc := deliverysvc.MustNewDeliveryService(
		deliverysvc.WithPostgresClient(postgresClient),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, paymentSvc, deliverySvc)
	transport.RegisterRoutes()

	worker := outboxworker.MustNewWorker(
		uow.NewUnitOfWork(postgresClient).Outbox(),
		rabbitClient,
	)

	return &App{
		orderSvc:       orderSvc,
		paymentSvc:     paymentSvc,
		deliverySvc:    deliverySvc,
		transport:      transport,
		outboxWorker:   worker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// Run starts the HTTP server and the outbox worker, then blocks until an
// interrupt signal arrives or one of them fails, and shuts everything down
// gracefully.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		a.outboxWorker.Start(gCtx)

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return a.transport.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("HTTP server error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Trace provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
