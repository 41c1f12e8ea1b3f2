package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
)

// Store is the persistence contract shared by every backend.
type Store interface {
	// List returns every appointment, newest date+time first.
	List(ctx context.Context) ([]model.Appointment, error)
	// ListByDate returns the appointments on date, earliest time first.
	ListByDate(ctx context.Context, date string) ([]model.Appointment, error)
	// FindByPhone returns the most recent appointment for phone, optionally
	// restricted to one date (empty date means any).
	FindByPhone(ctx context.Context, phone, date string) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	// Sample returns any one appointment.
	Sample(ctx context.Context) (model.Appointment, error)
	Create(ctx context.Context, draft model.Draft) (model.Appointment, error)
	Update(ctx context.Context, id string, patch model.Patch) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, model.ErrInvalidArgument)
}

func checkDate(date string) error {
	if !model.ValidDate(date) {
		return model.InvalidArgument("date must be in YYYY-MM-DD format")
	}
	return nil
}

// phoneQuery normalizes the FindByPhone arguments shared by all backends.
func phoneQuery(phone, date string) (string, string, error) {
	phone = strings.TrimSpace(phone)
	date = strings.TrimSpace(date)
	if phone == "" {
		return "", "", model.InvalidArgument("phone is required")
	}
	if date != "" {
		if err := checkDate(date); err != nil {
			return "", "", err
		}
	}
	return phone, date, nil
}
