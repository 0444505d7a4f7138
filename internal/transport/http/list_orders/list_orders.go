package listorders

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/principal"
	"github.com/joel710/agriflow/internal/transport/http/middleware/auth"
	"github.com/joel710/agriflow/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	List(ctx context.Context, p principal.Principal, filter order.QueryOrdersModel) ([]order.Order, error)
}

// parseIntSlice parses a comma-separated string to a slice of int64.
func parseIntSlice(s string) []int64 {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, part := range parts {
		if val, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			result = append(result, val)
		}
	}

	return result
}

// ListOrders handles the list orders request.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})

		return
	}

	query := r.URL.Query()

	filter := order.QueryOrdersModel{
		Ids:         parseIntSlice(query.Get("ids")),
		CustomerIds: parseIntSlice(query.Get("customerIds")),
	}
	if statuses := query.Get("statuses"); statuses != "" {
		filter.Statuses = strings.Split(statuses, ",")
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	orders, err := service.List(r.Context(), p, filter)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}
