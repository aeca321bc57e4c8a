package statemachine

import "food-order/models"

// Payments settle exactly once; a provider retry after settlement is ignored.
var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending: {models.PaymentSuccess, models.PaymentFailed},
}

func CanTransitionPayment(from, to models.PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentTransitions returns the payment state machine for documentation
func PaymentTransitions() map[models.PaymentStatus][]models.PaymentStatus {
	return paymentTransitions
}
