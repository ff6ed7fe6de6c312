package db

import (
	"context"
	"time"

	"escrim/models"

	"gorm.io/gorm"
)

// appendMovement 必须在改数量的同一个事务里调用
func appendMovement(tx *gorm.DB, m *models.MedicationBatch, delta int, reason models.MovementReason, actor string, prescriptionID *string) error {
	mv := &models.StockMovement{
		MedicationID:   m.ID,
		Product:        m.Product,
		Dosage:         m.Dosage,
		ExpiryDate:     m.ExpiryDate,
		Delta:          delta,
		QuantityAfter:  m.Quantity,
		Reason:         reason,
		Actor:          actor,
		PrescriptionID: prescriptionID,
	}
	if err := tx.Create(mv).Error; err != nil {
		return classify("insert stock movement", err)
	}
	return nil
}

// ListStockMovements 最新在前；key 为空返回全部批次的流水
func (r *Repo) ListStockMovements(ctx context.Context, key *models.MedicationKey, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Model(&models.StockMovement{}).Order("created_at DESC, id DESC").Limit(limit)
	if key != nil {
		q = q.Where("product = ? AND dosage = ? AND expiry_date = ?",
			key.Product, key.Dosage, models.NewDate(time.Time(key.ExpiryDate)))
	}
	var out []models.StockMovement
	if err := q.Find(&out).Error; err != nil {
		return nil, classify("list stock movements", err)
	}
	return out, nil
}
