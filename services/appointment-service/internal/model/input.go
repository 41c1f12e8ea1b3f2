package model

import (
	"strconv"
	"strings"
)

// ServiceInput is a billable line as received; Cost is a pointer so a missing
// cost can be told apart from zero.
type ServiceInput struct {
	Description string
	Cost        *float64
}

// Draft is the input to create.
type Draft struct {
	Name             string
	Phone            string
	Date             string
	Time             string
	Services         []ServiceInput
	ConfirmationSent bool
	ReviewSent       bool
	BillUpdateFlag   bool
}

// Build normalizes and validates d. The result has no id or timestamps.
func (d Draft) Build() (Appointment, error) {
	services, err := buildServices(d.Services)
	if err != nil {
		return Appointment{}, err
	}
	a := Appointment{
		Name:             strings.TrimSpace(d.Name),
		Phone:            strings.TrimSpace(d.Phone),
		Date:             strings.TrimSpace(d.Date),
		Time:             strings.TrimSpace(d.Time),
		Services:         services,
		ConfirmationSent: d.ConfirmationSent,
		ReviewSent:       d.ReviewSent,
		BillUpdateFlag:   d.BillUpdateFlag,
	}
	if err := a.Validate(); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// Patch is the input to update. Nil fields are left untouched.
type Patch struct {
	Name             *string
	Phone            *string
	Date             *string
	Time             *string
	Services         *[]ServiceInput
	ConfirmationSent *bool
	ReviewSent       *bool
	BillUpdateFlag   *bool
}

// Changes is a Patch whose provided fields have been normalized and validated.
type Changes struct {
	Name             *string
	Phone            *string
	Date             *string
	Time             *string
	Services         []Service
	SetServices      bool
	ConfirmationSent *bool
	ReviewSent       *bool
	BillUpdateFlag   *bool
}

func (p Patch) Validate() (Changes, error) {
	c := Changes{
		ConfirmationSent: p.ConfirmationSent,
		ReviewSent:       p.ReviewSent,
		BillUpdateFlag:   p.BillUpdateFlag,
	}
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if v == "" {
			return Changes{}, required("name")
		}
		c.Name = &v
	}
	if p.Phone != nil {
		v := strings.TrimSpace(*p.Phone)
		c.Phone = &v
	}
	if p.Date != nil {
		v := strings.TrimSpace(*p.Date)
		if err := validateDate(v); err != nil {
			return Changes{}, err
		}
		c.Date = &v
	}
	if p.Time != nil {
		v := strings.TrimSpace(*p.Time)
		if v == "" {
			return Changes{}, required("time")
		}
		c.Time = &v
	}
	if p.Services != nil {
		services, err := buildServices(*p.Services)
		if err != nil {
			return Changes{}, err
		}
		c.Services = services
		c.SetServices = true
	}
	return c, nil
}

// ApplyTo merges c into a; fields absent from the patch are untouched.
func (c Changes) ApplyTo(a *Appointment) {
	if c.Name != nil {
		a.Name = *c.Name
	}
	if c.Phone != nil {
		a.Phone = *c.Phone
	}
	if c.Date != nil {
		a.Date = *c.Date
	}
	if c.Time != nil {
		a.Time = *c.Time
	}
	if c.SetServices {
		a.Services = c.Services
	}
	if c.ConfirmationSent != nil {
		a.ConfirmationSent = *c.ConfirmationSent
	}
	if c.ReviewSent != nil {
		a.ReviewSent = *c.ReviewSent
	}
	if c.BillUpdateFlag != nil {
		a.BillUpdateFlag = *c.BillUpdateFlag
	}
}

func buildServices(in []ServiceInput) ([]Service, error) {
	out := make([]Service, 0, len(in))
	for i, s := range in {
		desc := strings.TrimSpace(s.Description)
		if desc == "" {
			return nil, required(serviceField(i, "description"))
		}
		if s.Cost == nil {
			return nil, required(serviceField(i, "cost"))
		}
		out = append(out, Service{Description: desc, Cost: *s.Cost})
	}
	return out, nil
}

func serviceField(i int, name string) string {
	return "services[" + strconv.Itoa(i) + "]." + name
}
