package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "PENDING"
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCanceled       = "CANCELED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin      = "ADMIN"
	UserRoleCustomer   = "CUSTOMER"
	UserRoleRestaurant = "RESTAURANT"
	UserRoleCourier    = "COURIER"
)

const (
	PaymentMethodCash       = "CASH"
	PaymentMethodCreditCard = "CREDIT_CARD"
	PaymentMethodDebitCard  = "DEBIT_CARD"
	PaymentMethodPix        = "PIX"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// IsOrderStatus reports whether s is a known order status.
func IsOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsPaymentMethod reports whether s is an accepted payment method.
func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPix:
		return true
	}
	return false
}

// IsUserRole reports whether s is a known user role.
func IsUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleCustomer, UserRoleRestaurant, UserRoleCourier:
		return true
	}
	return false
}
