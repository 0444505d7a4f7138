package order

// QueryOrdersModel represents filter parameters for querying orders.
type QueryOrdersModel struct {
	Ids         []int64  `json:"ids,omitempty"`
	CustomerIds []int64  `json:"customerIds,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}

// CreateOrderItemModel is one line of a cart submission. The caller supplies
// only product and quantity; prices come from the catalog record.
type CreateOrderItemModel struct {
	ProductID int64
	Quantity  int
}

// CreateOrderModel is the input of the order creation operation.
type CreateOrderModel struct {
	Items           []CreateOrderItemModel
	DeliveryAddress string
	DeliveryNotes   string
	PaymentMethod   string
}
