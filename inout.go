package conventions

import "go.uber.org/dig"

// In marks a parameter object. When a constructor takes a single struct
// with In embedded, each exported field is resolved from the scope running
// the constructor.
//
// Supported tags:
//   - `optional:"true"` leaves the field zero when the service is missing
//   - `name:"..."` resolves a named service
//
// Example:
//
//	type OrderServiceParams struct {
//	    conventions.In
//
//	    Store  OrderStore
//	    Cache  Cache  `name:"redis"`
//	    Logger Logger `optional:"true"`
//	}
//
//	func NewOrderService(p OrderServiceParams) *OrderService {
//	    return &OrderService{store: p.Store, cache: p.Cache, logger: p.Logger}
//	}
//
// In must be embedded anonymously.
type In = dig.In
