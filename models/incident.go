package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const IncidentTable = "esc_incidents"
const PrescriptionTable = "esc_prescriptions"

// Incident 一次事件（attentat）。RemainingToTreat 每开一张处方减一，最低到 0
type Incident struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Location         string         `gorm:"size:200;not null;uniqueIndex:uq_incident,priority:1" json:"location"`
	TotalInjured     int            `gorm:"not null" json:"totalInjured"`
	RemainingToTreat int            `gorm:"not null;check:chk_incident_remaining,remaining_to_treat >= 0" json:"remainingToTreat"`
	EventDate        datatypes.Date `gorm:"not null;uniqueIndex:uq_incident,priority:2" json:"eventDate"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (Incident) TableName() string { return IncidentTable }

func (i *Incident) Trim() { i.Location = strings.TrimSpace(i.Location) }

func (i Incident) Ref() IncidentRef {
	return IncidentRef{Location: i.Location, EventDate: i.EventDate}
}

// IncidentRef 用 (地点, 日期) 定位一个事件
type IncidentRef struct {
	Location  string         `json:"location"`
	EventDate datatypes.Date `json:"eventDate"`
}

// Prescription 每个病人（按姓名）只允许一张
type Prescription struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName        string         `gorm:"size:120;not null;uniqueIndex:uq_prescription_patient,priority:1" json:"firstName"`
	LastName         string         `gorm:"size:120;not null;uniqueIndex:uq_prescription_patient,priority:2;index" json:"lastName"`
	ClinicianID      string         `gorm:"size:255;not null;index" json:"clinicianId"`
	Medication       string         `gorm:"size:400;not null" json:"medication"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	IssuedOn         datatypes.Date `gorm:"not null" json:"issuedOn"`
	IncidentLocation string         `gorm:"size:200;not null" json:"incidentLocation"`
	IncidentDate     datatypes.Date `gorm:"not null" json:"incidentDate"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (Prescription) TableName() string { return PrescriptionTable }

func (p *Prescription) Trim() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.ClinicianID = strings.TrimSpace(p.ClinicianID)
	p.Medication = strings.TrimSpace(p.Medication)
	p.IncidentLocation = strings.TrimSpace(p.IncidentLocation)
}
