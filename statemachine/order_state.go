package statemachine

import (
	"fmt"
	"strings"

	"food-order/models"
)

// Actor names who (or what) triggers an order transition
type Actor string

const (
	ActorCustomer   Actor = "customer"
	ActorRestaurant Actor = "restaurant"
	ActorAdmin      Actor = "admin"
	ActorDelivery   Actor = "delivery" // side effect of the delivery lifecycle
	ActorPayment    Actor = "payment"  // side effect of a provider event
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor Actor              `json:"actor"`
}

// validTransitions is the authoritative order state machine definition
var validTransitions = []Transition{
	// Restaurant accepts, or a successful payment confirms
	{From: models.StatusPending, To: models.StatusConfirmed, Actor: ActorRestaurant},
	{From: models.StatusPending, To: models.StatusConfirmed, Actor: ActorPayment},
	// Anything before READY can still be cancelled
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorCustomer},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorAdmin},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorPayment},
	{From: models.StatusConfirmed, To: models.StatusPreparing, Actor: ActorRestaurant},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorAdmin},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorPayment},
	{From: models.StatusPreparing, To: models.StatusReady, Actor: ActorRestaurant},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorAdmin},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorPayment},
	// Only the delivery lifecycle moves an order past READY
	{From: models.StatusReady, To: models.StatusOutForDelivery, Actor: ActorDelivery},
	{From: models.StatusOutForDelivery, To: models.StatusDelivered, Actor: ActorDelivery},
	// A cancelled or failed delivery hands the order back for re-dispatch
	{From: models.StatusOutForDelivery, To: models.StatusReady, Actor: ActorDelivery},
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns all valid next states from a given state, for any actor
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// ValidTransitionsFor returns the next states a specific actor may choose
func ValidTransitionsFor(status models.OrderStatus, actor Actor) []models.OrderStatus {
	var nexts []models.OrderStatus
	for _, t := range validTransitions {
		if t.From == status && t.Actor == actor {
			nexts = append(nexts, t.To)
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move an order from one state to another
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return fmt.Errorf("%s → %s is not allowed for actor '%s'; valid transitions from %s are: %s",
		from, to, actor, from, describe(ValidTransitionsFrom(from)))
}

// IsTerminal reports whether no transition leaves the given order state
func IsTerminal(status models.OrderStatus) bool {
	return status == models.StatusDelivered || status == models.StatusCancelled
}

// Cancellable reports whether the order can still be cancelled by someone
func Cancellable(status models.OrderStatus) bool {
	return transitionMap[transitionKey{status, models.StatusCancelled, ActorAdmin}]
}

func describe[S ~string](nexts []S) string {
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// GetAllTransitions returns the full order state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
