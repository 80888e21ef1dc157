package domain

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether UpdateStatus may no longer move the order.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

func (s Status) cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) refundable() bool {
	return s == StatusProcessing || s == StatusShipped || s == StatusDelivered
}

// PaymentStatus tracks money, independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentCancelled         PaymentStatus = "cancelled"
)

func (s PaymentStatus) String() string { return string(s) }

// PaymentMethod is how the shopper pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentPayPal         PaymentMethod = "paypal"
)

func (m PaymentMethod) String() string { return string(m) }

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCashOnDelivery, PaymentCreditCard, PaymentPayPal:
		return m, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
