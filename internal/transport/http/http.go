package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joel710/agriflow/internal/service/models/delivery"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/models/wallet"
	"github.com/joel710/agriflow/internal/service/services/deliverysvc"
	cancelorder "github.com/joel710/agriflow/internal/transport/http/cancel_order"
	createorder "github.com/joel710/agriflow/internal/transport/http/create_order"
	getdelivery "github.com/joel710/agriflow/internal/transport/http/get_delivery"
	getorder "github.com/joel710/agriflow/internal/transport/http/get_order"
	getwallet "github.com/joel710/agriflow/internal/transport/http/get_wallet"
	initiatepayment "github.com/joel710/agriflow/internal/transport/http/initiate_payment"
	listorders "github.com/joel710/agriflow/internal/transport/http/list_orders"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	paymentwebhook "github.com/joel710/agriflow/internal/transport/http/payment_webhook"
	updatedelivery "github.com/joel710/agriflow/internal/transport/http/update_delivery"
	updatestatus "github.com/joel710/agriflow/internal/transport/http/update_status"
	"github.com/joel710/agriflow/pkg/http/middleware/trace"
	"github.com/joel710/agriflow/pkg/logger"
	"github.com/spf13/viper"
)

type orderService interface {
	Create(ctx context.Context, p principal.Principal, model order.CreateOrderModel) (*order.Order, error)
	GetByID(ctx context.Context, p principal.Principal, id int64) (*order.Order, error)
	List(ctx context.Context, p principal.Principal, filter order.QueryOrdersModel) ([]order.Order, error)
	UpdateStatus(ctx context.Context, p principal.Principal, orderID int64, next order.Status) (*order.Order, error)
	Cancel(ctx context.Context, p principal.Principal, orderID int64) (*order.Order, error)
}

type paymentService interface {
	Initiate(ctx context.Context, p principal.Principal, model payment.InitiateModel) (*payment.InitiationResult, error)
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error
	GetWallet(ctx context.Context, p principal.Principal, limit, offset int) (*wallet.Wallet, []wallet.Transaction, error)
}

type deliveryService interface {
	GetByOrderID(ctx context.Context, p principal.Principal, orderID int64) (*delivery.Delivery, error)
	UpdateStatus(
		ctx context.Context,
		p principal.Principal,
		deliveryID int64,
		model deliverysvc.UpdateModel,
	) (*delivery.Delivery, error)
}

type HTTPTransport struct {
	server      *http.Server
	router      *chi.Mux
	orderSvc    orderService
	paymentSvc  paymentService
	deliverySvc deliveryService
}

func NewHTTPTransport(
	orderSvc orderService,
	paymentSvc paymentService,
	deliverySvc deliveryService,
) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:      server,
		router:      router,
		orderSvc:    orderSvc,
		paymentSvc:  paymentSvc,
		deliverySvc: deliverySvc,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport. Webhook ingress
// stays outside the auth middleware: providers authenticate by signature, not
// by principal.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.NewAuthMiddleware)

			r.Post("/orders", h.createOrder)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Put("/orders/{id}/status", h.updateStatus)
			r.Post("/orders/{id}/cancel", h.cancelOrder)
			r.Post("/orders/{id}/payment", h.initiatePayment)
			r.Get("/orders/{id}/delivery", h.getDelivery)
			r.Put("/deliveries/{id}/status", h.updateDelivery)
			r.Get("/wallet", h.getWallet)
		})

		r.Post("/webhooks/payment/{provider}", h.paymentWebhook)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orderSvc)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orderSvc)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orderSvc)
}

func (h *HTTPTransport) updateStatus(w http.ResponseWriter, r *http.Request) {
	updatestatus.UpdateStatus(w, r, h.orderSvc)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.orderSvc)
}

func (h *HTTPTransport) initiatePayment(w http.ResponseWriter, r *http.Request) {
	initiatepayment.InitiatePayment(w, r, h.paymentSvc)
}

func (h *HTTPTransport) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	paymentwebhook.PaymentWebhook(w, r, h.paymentSvc)
}

func (h *HTTPTransport) getWallet(w http.ResponseWriter, r *http.Request) {
	getwallet.GetWallet(w, r, h.paymentSvc)
}

func (h *HTTPTransport) getDelivery(w http.ResponseWriter, r *http.Request) {
	getdelivery.GetDelivery(w, r, h.deliverySvc)
}

func (h *HTTPTransport) updateDelivery(w http.ResponseWriter, r *http.Request) {
	updatedelivery.UpdateDelivery(w, r, h.deliverySvc)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
