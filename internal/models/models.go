package models

import "time"

// DriverStatus is the operational status of a driver
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

// ProjectStatus is the top-level lifecycle status of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

// PaymentStatus is the payment state of a project
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentCharge PaymentStatus = "charge"
)

// AcceptanceStatus is the driver-facing sub-lifecycle of a project,
// independent of the top-level lifecycle status.
type AcceptanceStatus string

const (
	AcceptancePending  AcceptanceStatus = "pending"
	AcceptanceAccepted AcceptanceStatus = "accepted"
	AcceptanceStarted  AcceptanceStatus = "started"
	AcceptanceDeclined AcceptanceStatus = "declined"
)

// Driver is the identity record for a driver. The PIN is a short numeric
// credential managed by the back office; uniqueness of LoginID and PIN is
// enforced at write time by the driver-management collaborator.
type Driver struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	LoginID      string       `json:"login_id"`
	PIN          string       `json:"-"`
	Status       DriverStatus `json:"status"`
	AccessToken  *string      `json:"-"`
	LastActiveAt *time.Time   `json:"last_active_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Project is a trip owned by exactly one driver once assigned. Unassigned
// projects carry a nil DriverID and are invisible to the driver-facing core.
type Project struct {
	ID            string           `json:"id"`
	DriverID      *string          `json:"driver_id,omitempty"`
	CompanyID     string           `json:"company_id"`
	CarTypeID     string           `json:"car_type_id"`
	ClientName    string           `json:"client_name"`
	ClientPhone   string           `json:"client_phone"`
	Pickup        string           `json:"pickup"`
	Dropoff       string           `json:"dropoff"`
	Date          string           `json:"date"`
	Time          string           `json:"time"`
	Passengers    int              `json:"passengers"`
	Price         float64          `json:"price"`
	DriverFee     float64          `json:"driver_fee"`
	Status        ProjectStatus    `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Acceptance    AcceptanceStatus `json:"acceptance_status"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy    *string          `json:"accepted_by,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	DeclinedAt    *time.Time       `json:"declined_at,omitempty"`
	DeclinedBy    *string          `json:"declined_by,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CompletedBy   *string          `json:"completed_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Company is read-only reference data
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CarType is read-only reference data
type CarType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
