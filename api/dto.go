/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers call
  validateStruct before touching the domain layer, so malformed requests
  never reach the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - ward/types.go: The domain model behind them
*/
package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/ward-engine/ward"
)

var validate = validator.New()

// validateStruct runs struct-tag validation and flattens the result into
// one readable message per failing field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// =============================================================================
// BOOKINGS
// =============================================================================

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Bed         string `json:"bed,omitempty"`
	Category    string `json:"category"`
	ChartNo     string `json:"chart_no"`
	PatientName string `json:"patient_name"`
	Dose        string `json:"dose"`
	Doctor      string `json:"doctor"`
	MedForm     string `json:"med_form"`
	AdjunctPrep bool   `json:"adjunct_prep"`
	MedOrdered  bool   `json:"med_ordered"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedBy   string `json:"updated_by"`
	UpdatedAt   string `json:"updated_at"`
}

func toBookingDTO(b ward.Booking) BookingDTO {
	return BookingDTO{
		ID:          int64(b.ID),
		Date:        b.Date.String(),
		Bed:         string(b.Bed),
		Category:    string(b.Category),
		ChartNo:     b.ChartNo,
		PatientName: b.PatientName,
		Dose:        b.Dose.String(),
		Doctor:      b.Doctor,
		MedForm:     string(b.MedForm),
		AdjunctPrep: b.AdjunctPrep,
		MedOrdered:  b.MedOrdered,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedBy:   b.UpdatedBy,
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

func toBookingDTOs(bs []ward.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bs))
	for i, b := range bs {
		dtos[i] = toBookingDTO(b)
	}
	return dtos
}

// CreateBookingRequest is the request to create a booking.
type CreateBookingRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Bed         string `json:"bed" validate:"omitempty,max=8"`
	Category    string `json:"category" validate:"required,oneof=inpatient outpatient"`
	ChartNo     string `json:"chart_no" validate:"required,max=32"`
	PatientName string `json:"patient_name" validate:"required,max=64"`
	Dose        string `json:"dose" validate:"required"`
	Doctor      string `json:"doctor" validate:"required,max=64"`
	MedForm     string `json:"med_form" validate:"omitempty,oneof=tablet liquid"`
	AdjunctPrep bool   `json:"adjunct_prep"`
}

func (r CreateBookingRequest) toInput() (ward.CreateInput, error) {
	date, err := ward.ParseDate(r.Date)
	if err != nil {
		return ward.CreateInput{}, fmt.Errorf("date: %w", err)
	}
	dose, err := decimal.NewFromString(r.Dose)
	if err != nil {
		return ward.CreateInput{}, fmt.Errorf("dose: %w", err)
	}
	return ward.CreateInput{
		Date:        date,
		Bed:         ward.Bed(r.Bed),
		Category:    ward.Category(r.Category),
		ChartNo:     r.ChartNo,
		PatientName: r.PatientName,
		Dose:        dose,
		Doctor:      r.Doctor,
		MedForm:     ward.MedForm(r.MedForm),
		AdjunctPrep: r.AdjunctPrep,
	}, nil
}

// UpdateBookingRequest is a partial update; absent fields are unchanged.
type UpdateBookingRequest struct {
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Bed         *string `json:"bed" validate:"omitempty,max=8"`
	ChartNo     *string `json:"chart_no" validate:"omitempty,max=32"`
	PatientName *string `json:"patient_name" validate:"omitempty,max=64"`
	Dose        *string `json:"dose"`
	Doctor      *string `json:"doctor" validate:"omitempty,max=64"`
	MedForm     *string `json:"med_form" validate:"omitempty,oneof=tablet liquid"`
	AdjunctPrep *bool   `json:"adjunct_prep"`
}

func (r UpdateBookingRequest) toInput() (ward.UpdateInput, error) {
	var in ward.UpdateInput
	if r.Date != nil {
		date, err := ward.ParseDate(*r.Date)
		if err != nil {
			return in, fmt.Errorf("date: %w", err)
		}
		in.Date = &date
	}
	if r.Bed != nil {
		bed := ward.Bed(*r.Bed)
		in.Bed = &bed
	}
	if r.ChartNo != nil {
		in.ChartNo = r.ChartNo
	}
	if r.PatientName != nil {
		in.PatientName = r.PatientName
	}
	if r.Dose != nil {
		dose, err := decimal.NewFromString(*r.Dose)
		if err != nil {
			return in, fmt.Errorf("dose: %w", err)
		}
		in.Dose = &dose
	}
	if r.Doctor != nil {
		in.Doctor = r.Doctor
	}
	if r.MedForm != nil {
		form := ward.MedForm(*r.MedForm)
		in.MedForm = &form
	}
	if r.AdjunctPrep != nil {
		in.AdjunctPrep = r.AdjunctPrep
	}
	return in, nil
}

// RelocateRequest moves a booking to a new slot.
type RelocateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Bed  string `json:"bed" validate:"omitempty,max=8"`
}

// =============================================================================
// CALENDAR AND SLOTS
// =============================================================================

// BedCellDTO is one bed cell of the month grid.
type BedCellDTO struct {
	Bed     string      `json:"bed"`
	Open    bool        `json:"open"`
	Booking *BookingDTO `json:"booking,omitempty"`
}

// DayViewDTO is one day of the month grid.
type DayViewDTO struct {
	Date          string       `json:"date"`
	Holiday       bool         `json:"holiday"`
	FullyClosed   bool         `json:"fully_closed"`
	Locked        bool         `json:"locked"`
	Beds          []BedCellDTO `json:"beds"`
	OutpatientDay bool         `json:"outpatient_day"`
	Outpatients   []BookingDTO `json:"outpatients,omitempty"`
}

func toDayViewDTO(d ward.DayView) DayViewDTO {
	dto := DayViewDTO{
		Date:          d.Date.String(),
		Holiday:       d.Holiday,
		FullyClosed:   d.FullyClosed,
		Locked:        d.Locked,
		OutpatientDay: d.OutpatientDay,
		Outpatients:   toBookingDTOs(d.Outpatients),
	}
	for _, cell := range d.Beds {
		c := BedCellDTO{Bed: string(cell.Bed), Open: cell.Open}
		if cell.Booking != nil {
			b := toBookingDTO(*cell.Booking)
			c.Booking = &b
		}
		dto.Beds = append(dto.Beds, c)
	}
	return dto
}

// SlotDTO is a suggested free slot.
type SlotDTO struct {
	Date string `json:"date"`
	Bed  string `json:"bed"`
}

// OverrideRequest force-opens or force-closes beds on a date.
type OverrideRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Scope string `json:"scope" validate:"required,max=8"`
	Open  bool   `json:"open"`
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// LockDaysDTO carries the lock-window configuration.
type LockDaysDTO struct {
	InpatientDays  int `json:"inpatient_days" validate:"gte=0,lte=90"`
	OutpatientDays int `json:"outpatient_days" validate:"gte=0,lte=90"`
}

// HolidayRequest adds or removes a holiday.
type HolidayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO represents one audit record.
type AuditEntryDTO struct {
	Seq        int64  `json:"seq"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Detail     string `json:"detail"`
	Timestamp  string `json:"timestamp"`
}

func toAuditDTOs(entries []ward.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			Seq:        e.Seq,
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			TargetKind: e.TargetKind,
			TargetID:   e.TargetID,
			Detail:     e.Detail,
			Timestamp:  e.Timestamp.Format(time.RFC3339),
		}
	}
	return dtos
}

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents an account.
type UserDTO struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func toUserDTO(a ward.Actor) UserDTO {
	return UserDTO{Username: a.Username, Name: a.Name, Role: string(a.Role), IsActive: a.IsActive}
}

// CreateUserRequest creates an account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=32,alphanum"`
	Name     string `json:"name" validate:"required,max=64"`
	Role     string `json:"role" validate:"required,oneof=admin user med_admin"`
}

// UpdateUserRequest updates an account's display name and role.
type UpdateUserRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Role string `json:"role" validate:"required,oneof=admin user med_admin"`
}

// =============================================================================
// STATS AND ERRORS
// =============================================================================

// StatsDTO carries the dashboard counters.
type StatsDTO struct {
	TodayInpatients  int `json:"today_inpatients"`
	TodayOutpatients int `json:"today_outpatients"`
	MonthInpatients  int `json:"month_inpatients"`
	MonthOutpatients int `json:"month_outpatients"`
	MedPending       int `json:"med_pending"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
