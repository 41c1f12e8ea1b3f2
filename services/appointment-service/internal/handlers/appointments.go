package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/paventhan183/dr-appointment/libs/httpx"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/events"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/storage"
)

type AppointmentHandler struct {
	store  storage.Store
	events events.Publisher
	logger *slog.Logger
}

func NewAppointmentHandler(store storage.Store, publisher events.Publisher, logger *slog.Logger) *AppointmentHandler {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &AppointmentHandler{store: store, events: publisher, logger: logger}
}

type serviceRequest struct {
	Description string   `json:"description"`
	Cost        *float64 `json:"cost"`
}

type createAppointmentRequest struct {
	Name             string           `json:"name"`
	Phone            string           `json:"phone"`
	Date             string           `json:"date"`
	Time             string           `json:"time"`
	Services         []serviceRequest `json:"services"`
	ConfirmationSent bool             `json:"confirmationSent"`
	ReviewSent       bool             `json:"reviewSent"`
	BillUpdateFlag   bool             `json:"billupdateflag"`
}

// updateAppointmentRequest also lists the read-only fields of a fetched
// record so a client can send it back unchanged; their values are ignored.
type updateAppointmentRequest struct {
	Name             *string           `json:"name"`
	Phone            *string           `json:"phone"`
	Date             *string           `json:"date"`
	Time             *string           `json:"time"`
	Services         *[]serviceRequest `json:"services"`
	ConfirmationSent *bool             `json:"confirmationSent"`
	ReviewSent       *bool             `json:"reviewSent"`
	BillUpdateFlag   *bool             `json:"billupdateflag"`

	ID        json.RawMessage `json:"id"`
	MongoID   json.RawMessage `json:"_id"`
	CreatedAt json.RawMessage `json:"createdAt"`
	UpdatedAt json.RawMessage `json:"updatedAt"`
	Version   json.RawMessage `json:"__v"`
}

type billDetailsResponse struct {
	PatientName string          `json:"patientName"`
	BillDate    string          `json:"billDate"`
	Services    []model.Service `json:"services"`
}

func (r createAppointmentRequest) draft() model.Draft {
	return model.Draft{
		Name:             r.Name,
		Phone:            r.Phone,
		Date:             r.Date,
		Time:             r.Time,
		Services:         serviceInputs(r.Services),
		ConfirmationSent: r.ConfirmationSent,
		ReviewSent:       r.ReviewSent,
		BillUpdateFlag:   r.BillUpdateFlag,
	}
}

func (r updateAppointmentRequest) patch() model.Patch {
	p := model.Patch{
		Name:             r.Name,
		Phone:            r.Phone,
		Date:             r.Date,
		Time:             r.Time,
		ConfirmationSent: r.ConfirmationSent,
		ReviewSent:       r.ReviewSent,
		BillUpdateFlag:   r.BillUpdateFlag,
	}
	if r.Services != nil {
		in := serviceInputs(*r.Services)
		p.Services = &in
	}
	return p
}

func serviceInputs(in []serviceRequest) []model.ServiceInput {
	out := make([]model.ServiceInput, 0, len(in))
	for _, s := range in {
		out = append(out, model.ServiceInput{Description: s.Description, Cost: s.Cost})
	}
	return out
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *AppointmentHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListByDate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *AppointmentHandler) BillDetails(w http.ResponseWriter, r *http.Request) {
	phone, ok := pathParam(w, r, "phone")
	if !ok {
		return
	}
	appt, err := h.store.FindByPhone(r.Context(), phone, r.URL.Query().Get("date"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, billDetailsResponse{
		PatientName: appt.Name,
		BillDate:    appt.Date,
		Services:    appt.Services,
	})
}

func (h *AppointmentHandler) KeepWake(w http.ResponseWriter, r *http.Request) {
	appt, err := h.store.Sample(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, err := h.store.Create(r.Context(), req.draft())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.events.Publish(r.Context(), events.Event{Type: events.TypeCreated, AppointmentID: appt.ID, Appointment: &appt})
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, err := h.store.Update(r.Context(), id, req.patch())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.events.Publish(r.Context(), events.Event{Type: events.TypeUpdated, AppointmentID: appt.ID, Appointment: &appt})
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.events.Publish(r.Context(), events.Event{Type: events.TypeDeleted, AppointmentID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.events.Publish(r.Context(), events.Event{Type: events.TypeCleared})
	w.WriteHeader(http.StatusNoContent)
}
