// Package identity is the driver-side profile store: local passcode-bound
// profiles persisted in the shared store, unrelated to trip sync but using
// the same persistence.
package identity

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/example/trip-share/internal/models"
	"github.com/example/trip-share/internal/store"
)

type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

type NotFoundError struct{ Msg string }

func (e *NotFoundError) Error() string { return e.Msg }

type Service struct {
	kv       store.KV
	validate *validator.Validate
}

func NewService(kv store.KV) *Service {
	return &Service{kv: kv, validate: validator.New()}
}

// SignUp appends a new profile and activates it. The passcode must be
// exactly four digits and unique across the profile list.
func (s *Service) SignUp(ctx context.Context, firstName, lastName, passcode string) (models.DriverProfile, error) {
	p := models.DriverProfile{FirstName: firstName, LastName: lastName, Passcode: passcode}
	if err := s.validate.Struct(p); err != nil {
		return models.DriverProfile{}, &ValidationError{Msg: "first name, last name and a 4-digit passcode are required"}
	}
	profiles, err := s.profiles(ctx)
	if err != nil {
		return models.DriverProfile{}, err
	}
	for _, existing := range profiles {
		if existing.Passcode == passcode {
			return models.DriverProfile{}, &ConflictError{Msg: "passcode already in use"}
		}
	}
	profiles = append(profiles, p)
	if err := store.SetJSON(ctx, s.kv, store.DriversKey, profiles); err != nil {
		return models.DriverProfile{}, err
	}
	if err := s.activate(ctx, p); err != nil {
		return models.DriverProfile{}, err
	}
	return p, nil
}

// LogIn activates the profile matching the passcode.
func (s *Service) LogIn(ctx context.Context, passcode string) (models.DriverProfile, error) {
	profiles, err := s.profiles(ctx)
	if err != nil {
		return models.DriverProfile{}, err
	}
	for _, p := range profiles {
		if p.Passcode == passcode {
			if err := s.activate(ctx, p); err != nil {
				return models.DriverProfile{}, err
			}
			return p, nil
		}
	}
	return models.DriverProfile{}, &NotFoundError{Msg: "no driver with that passcode"}
}

// Current returns the active profile, surviving process restarts.
func (s *Service) Current(ctx context.Context) (models.DriverProfile, bool, error) {
	var p models.DriverProfile
	ok, err := store.GetJSON(ctx, s.kv, store.CurrentDriverKey, &p)
	if err != nil || !ok {
		return models.DriverProfile{}, false, err
	}
	return p, true, nil
}

func (s *Service) profiles(ctx context.Context) ([]models.DriverProfile, error) {
	var out []models.DriverProfile
	if _, err := store.GetJSON(ctx, s.kv, store.DriversKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) activate(ctx context.Context, p models.DriverProfile) error {
	return store.SetJSON(ctx, s.kv, store.CurrentDriverKey, p)
}
