// Package services holds the order, delivery and payment lifecycle controllers.
package services

import (
	"context"
	"errors"
	"fmt"

	"food-order/events"
	"food-order/repository"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrUpstream          = errors.New("upstream failure")
	ErrInternal          = errors.New("internal error")
)

var sentinels = []error{
	ErrNotFound, ErrForbidden, ErrInvalidRequest, ErrInvalidTransition, ErrInvalidState,
	ErrConflict, ErrInvalidSignature, ErrUpstream, ErrInternal,
}

func classified(err error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// lookup turns a repository miss into ErrNotFound and a unique violation into ErrConflict
func lookup(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	return err
}

// internal passes service errors through and hides everything else behind ErrInternal
func internal(log zerolog.Logger, op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("storage failure")
	return fmt.Errorf("%w: %s", ErrInternal, op)
}

func forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrForbidden}, args...)...)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidRequest}, args...)...)
}

func publish(ctx context.Context, pub events.Publisher, log zerolog.Logger, evs ...events.Event) {
	if pub == nil || len(evs) == 0 {
		return
	}
	if err := pub.Publish(ctx, evs...); err != nil {
		log.Warn().Err(err).Int("events", len(evs)).Msg("publish lifecycle events")
	}
}
