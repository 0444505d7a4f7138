package paymentsvc

import (
	"context"
	"net/http"

	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/payment"
)

// Gateway is the pluggable boundary to an external payment provider. Concrete
// adapters (TMoney, Flooz, card processors) live in integration code and are
// registered by name at startup; this core never sees their wire protocols.
type Gateway interface {
	// Initiate starts an asynchronous payment for the order and returns the
	// provider session: a provisional transaction id plus a redirect
	// reference or out-of-band confirmation instructions. Implementations
	// must honor ctx cancellation; the orchestrator bounds the call and
	// holds no database locks while waiting.
	Initiate(ctx context.Context, ord *order.Order, details map[string]string) (*payment.GatewaySession, error)

	// VerifyWebhook authenticates a notification payload (signature or
	// origin check) and extracts the provider-agnostic event. An error
	// means the payload must not be trusted.
	VerifyWebhook(header http.Header, body []byte) (*payment.WebhookEvent, error)
}
