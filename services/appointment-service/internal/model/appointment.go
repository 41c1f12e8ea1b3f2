package model

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// DateLayout is the only accepted calendar date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

type Service struct {
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
}

type Appointment struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	Date             string     `json:"date"`
	Time             string     `json:"time"`
	Services         []Service  `json:"services"`
	ConfirmationSent bool       `json:"confirmationSent"`
	ReviewSent       bool       `json:"reviewSent"`
	BillUpdateFlag   bool       `json:"billupdateflag"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// SortKey orders appointments by date, then time.
func (a Appointment) SortKey() string {
	return a.Date + " " + a.Time
}

func (a Appointment) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return required("name")
	}
	if err := validateDate(a.Date); err != nil {
		return err
	}
	if strings.TrimSpace(a.Time) == "" {
		return required("time")
	}
	for i, s := range a.Services {
		if strings.TrimSpace(s.Description) == "" {
			return required(serviceField(i, "description"))
		}
	}
	return nil
}

func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// SortNewestFirst sorts by date+time descending.
func SortNewestFirst(list []Appointment) {
	slices.SortStableFunc(list, func(a, b Appointment) int {
		return cmp.Compare(b.SortKey(), a.SortKey())
	})
}

// SortByTime sorts same-day appointments by time ascending.
func SortByTime(list []Appointment) {
	slices.SortStableFunc(list, func(a, b Appointment) int {
		return cmp.Compare(a.Time, b.Time)
	})
}

// Clone returns a copy that shares no slices or pointers with a.
func (a Appointment) Clone() Appointment {
	out := a
	out.Services = slices.Clone(a.Services)
	if out.Services == nil {
		out.Services = []Service{}
	}
	if a.CreatedAt != nil {
		t := *a.CreatedAt
		out.CreatedAt = &t
	}
	if a.UpdatedAt != nil {
		t := *a.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
