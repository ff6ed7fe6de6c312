// db/repo_medication.go
package db

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"escrim/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListMedicationStock 全部批次；search 非空时按产品名模糊过滤
func (r *Repo) ListMedicationStock(ctx context.Context, search string) ([]models.MedicationBatch, error) {
	q := r.DB.WithContext(ctx).Model(&models.MedicationBatch{}).Order("product, dosage, expiry_date")
	if pat, ok := likePattern(search); ok {
		q = q.Where("LOWER(product) LIKE ?", pat)
	}
	var ms []models.MedicationBatch
	if err := q.Find(&ms).Error; err != nil {
		return nil, classify("list medications", err)
	}
	for i := range ms {
		ms[i].Trim()
	}
	return ms, nil
}

func whereMedicationKey(tx *gorm.DB, k models.MedicationKey) *gorm.DB {
	return tx.Where("product = ? AND dosage = ? AND expiry_date = ?",
		strings.TrimSpace(k.Product), strings.TrimSpace(k.Dosage), models.NewDate(time.Time(k.ExpiryDate)))
}

func (r *Repo) FindMedication(ctx context.Context, k models.MedicationKey) (*models.MedicationBatch, error) {
	var m models.MedicationBatch
	if err := whereMedicationKey(r.DB.WithContext(ctx), k).First(&m).Error; err != nil {
		return nil, classify("find medication", err)
	}
	m.Trim()
	return &m, nil
}

// GetMedicationQuantity 批次不存在时返回 ErrNotFound
func (r *Repo) GetMedicationQuantity(ctx context.Context, k models.MedicationKey) (int, error) {
	m, err := r.FindMedication(ctx, k)
	if err != nil {
		return 0, err
	}
	return m.Quantity, nil
}

func (r *Repo) SetMedicationQuantity(ctx context.Context, k models.MedicationKey, qty int) (bool, error) {
	if qty < 0 {
		return false, ErrNegativeQuantity
	}
	res := whereMedicationKey(r.DB.WithContext(ctx).Model(&models.MedicationBatch{}), k).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, classify("set medication quantity", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InsertMedicationBatch 入库：同一自然键已存在就累加数量，否则新建；同时记一条 restock 流水
func (r *Repo) InsertMedicationBatch(ctx context.Context, in *models.MedicationBatch, actor string) (*models.MedicationBatch, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	in.Trim()
	in.ExpiryDate = models.NewDate(time.Time(in.ExpiryDate))

	var out models.MedicationBatch
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.MedicationBatch
		err := whereMedicationKey(tx.Clauses(clause.Locking{Strength: "UPDATE"}), in.Key()).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(in).Error; err != nil {
				return classify("insert medication", err)
			}
			out = *in
		case err != nil:
			return classify("lock medication", err)
		default:
			if err := tx.Model(&models.MedicationBatch{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"quantity":     gorm.Expr("quantity + ?", in.Quantity),
					"lot":          in.Lot,
					"class":        in.Class,
					"crate_number": in.CrateNumber,
					"crate_name":   in.CrateName,
					"updated_at":   time.Now().UTC(),
				}).Error; err != nil {
				return classify("restock medication", err)
			}
			if err := tx.First(&out, existing.ID).Error; err != nil {
				return classify("reload medication", err)
			}
		}
		return appendMovement(tx, &out, in.Quantity, models.MovementRestock, actor, nil)
	})
	if err != nil {
		return nil, classify("insert medication", err)
	}
	out.Trim()
	return &out, nil
}

// LowStockEntry 按 (产品, DCI, 剂量) 汇总后低于阈值的药品
type LowStockEntry struct {
	Product  string `json:"product"`
	DCI      string `json:"dci"`
	Dosage   string `json:"dosage"`
	Quantity int    `json:"quantity"`
	Missing  int    `json:"missing"`
}

// LowStock groups every batch by product, active ingredient and dosage (all
// expiry dates together) and reports the groups whose total is under threshold.
func (r *Repo) LowStock(ctx context.Context, threshold int) ([]LowStockEntry, error) {
	ms, err := r.ListMedicationStock(ctx, "")
	if err != nil {
		return nil, err
	}
	groups := lo.GroupBy(ms, func(m models.MedicationBatch) [3]string {
		return [3]string{m.Product, m.DCI, m.Dosage}
	})
	var out []LowStockEntry
	for k, batch := range groups {
		total := lo.SumBy(batch, func(m models.MedicationBatch) int { return m.Quantity })
		if total < threshold {
			out = append(out, LowStockEntry{
				Product: k[0], DCI: k[1], Dosage: k[2],
				Quantity: total, Missing: threshold - total,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product != out[j].Product {
			return out[i].Product < out[j].Product
		}
		return out[i].Dosage < out[j].Dosage
	})
	return out, nil
}
