package models

import (
	"time"

	"gorm.io/datatypes"
)

type MovementReason string

const (
	MovementRestock  MovementReason = "restock"
	MovementDispense MovementReason = "dispense"
)

// StockMovement 库存流水，只追加不修改；和数量变更在同一个事务里写入
type StockMovement struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	MedicationID   uint           `gorm:"index;not null" json:"medicationId"`
	Product        string         `gorm:"size:200;not null" json:"product"`
	Dosage         string         `gorm:"size:60;not null" json:"dosage"`
	ExpiryDate     datatypes.Date `gorm:"not null" json:"expiryDate"`
	Delta          int            `gorm:"not null" json:"delta"`
	QuantityAfter  int            `gorm:"not null" json:"quantityAfter"`
	Reason         MovementReason `gorm:"size:20;not null" json:"reason"`
	Actor          string         `gorm:"size:255" json:"actor"`
	PrescriptionID *string        `gorm:"type:uuid" json:"prescriptionId,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"createdAt"`
}

func (StockMovement) TableName() string { return "esc_stock_movements" }
