package statemachine

import (
	"fmt"

	"food-order/models"
)

// deliveryTransitions is driven by the assigned driver only.
// PICKED_UP → PICKED_UP is accepted so a repeated pickup scan is harmless.
var deliveryTransitions = map[models.DeliveryStatus][]models.DeliveryStatus{
	models.DeliveryAssigned:       {models.DeliveryPickedUp, models.DeliveryCancelled, models.DeliveryFailed},
	models.DeliveryPickedUp:       {models.DeliveryPickedUp, models.DeliveryOutForDelivery},
	models.DeliveryOutForDelivery: {models.DeliveryDelivered},
}

func CanTransitionDelivery(from, to models.DeliveryStatus) error {
	for _, s := range deliveryTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("delivery %s → %s is not allowed; valid transitions from %s are: %s",
		from, to, from, describe(deliveryTransitions[from]))
}

func ValidDeliveryTransitionsFrom(status models.DeliveryStatus) []models.DeliveryStatus {
	return deliveryTransitions[status]
}

func IsDeliveryTerminal(status models.DeliveryStatus) bool {
	return len(deliveryTransitions[status]) == 0
}

// DeliveryTransitions returns the delivery state machine for documentation
func DeliveryTransitions() map[models.DeliveryStatus][]models.DeliveryStatus {
	return deliveryTransitions
}
