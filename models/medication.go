// models/medication.go
package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const MedicationTable = "esc_medications"
const AircraftTable = "esc_aircraft"

// MedicationBatch 一批药：同一 (产品, 剂量, 有效期) 只有一行
type MedicationBatch struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Product     string         `gorm:"size:200;not null;uniqueIndex:uq_med_batch,priority:1" json:"product"`
	DCI         string         `gorm:"column:dci;size:200;not null" json:"dci"` // 活性成分
	Dosage      string         `gorm:"size:60;not null;uniqueIndex:uq_med_batch,priority:2" json:"dosage"`
	ExpiryDate  datatypes.Date `gorm:"not null;uniqueIndex:uq_med_batch,priority:3" json:"expiryDate"`
	Quantity    int            `gorm:"not null;default:0;check:chk_med_quantity,quantity >= 0" json:"quantity"`
	Lot         string         `gorm:"size:60;not null" json:"lot"`
	Class       string         `gorm:"size:120;not null" json:"class"`
	CrateNumber int            `gorm:"not null" json:"crateNumber"`
	CrateName   string         `gorm:"size:120;not null" json:"crateName"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (MedicationBatch) TableName() string { return MedicationTable }

func (m *MedicationBatch) Trim() {
	m.Product = strings.TrimSpace(m.Product)
	m.DCI = strings.TrimSpace(m.DCI)
	m.Dosage = strings.TrimSpace(m.Dosage)
	m.Lot = strings.TrimSpace(m.Lot)
	m.Class = strings.TrimSpace(m.Class)
	m.CrateName = strings.TrimSpace(m.CrateName)
}

func (m MedicationBatch) Key() MedicationKey {
	return MedicationKey{Product: m.Product, Dosage: m.Dosage, ExpiryDate: m.ExpiryDate}
}

// MedicationKey 药品批次的自然键
type MedicationKey struct {
	Product    string         `json:"product"`
	Dosage     string         `json:"dosage"`
	ExpiryDate datatypes.Date `json:"expiryDate"`
}

type AircraftState string

const (
	AircraftAvailable AircraftState = "available"
	AircraftOccupied  AircraftState = "occupied"
)

func (s AircraftState) Valid() bool {
	return s == AircraftAvailable || s == AircraftOccupied
}

// Aircraft 运力：除状态和关联事件外都是静态数据
type Aircraft struct {
	Name               string  `gorm:"primaryKey;size:120" json:"name"`
	Constructor        string  `gorm:"size:120" json:"constructor"`
	EngineType         string  `gorm:"size:60" json:"engineType"`
	FlightType         string  `gorm:"size:60" json:"flightType"`
	MaxTonnage         float64 `json:"maxTonnage"`
	DoorSizeCm         string  `gorm:"size:60" json:"doorSizeCm"`
	HoldDimensionsCm   string  `gorm:"size:60" json:"holdDimensionsCm"`
	UsableVolumeM3     float64 `json:"usableVolumeM3"`
	RunwayRequirementM int     `json:"runwayRequirementM"`
	LoadedRangeKm      int     `json:"loadedRangeKm"`
	EmptyRangeKm       int     `json:"emptyRangeKm"`
	CruiseSpeedKmh     int     `json:"cruiseSpeedKmh"`
	FuelConsumptionLh  int     `json:"fuelConsumptionLh"`
	PalletPositions    int     `json:"palletPositions"`

	State            AircraftState   `gorm:"size:20;not null;default:'available'" json:"state"`
	IncidentLocation *string         `gorm:"size:200" json:"incidentLocation,omitempty"`
	IncidentDate     *datatypes.Date `json:"incidentDate,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (Aircraft) TableName() string { return AircraftTable }

func (a *Aircraft) Trim() {
	a.Name = strings.TrimSpace(a.Name)
	a.Constructor = strings.TrimSpace(a.Constructor)
	a.EngineType = strings.TrimSpace(a.EngineType)
	a.FlightType = strings.TrimSpace(a.FlightType)
	a.State = AircraftState(strings.TrimSpace(string(a.State)))
	if a.IncidentLocation != nil {
		s := strings.TrimSpace(*a.IncidentLocation)
		a.IncidentLocation = &s
	}
}
