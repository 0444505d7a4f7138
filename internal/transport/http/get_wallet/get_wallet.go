package getwallet

import (
	"context"
	"net/http"
	"strconv"

	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/service/models/wallet"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	GetWallet(ctx context.Context, p principal.Principal, limit, offset int) (*wallet.Wallet, []wallet.Transaction, error)
}

// GetWallet handles the wallet read request: balance plus ledger history.
func GetWallet(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	wal, transactions, err := service.GetWallet(r.Context(), p, limit, offset)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"wallet":       wal,
		"transactions": transactions,
	})
}
