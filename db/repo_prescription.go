package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"escrim/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 病人姓名统一小写保存和比较
func normalizePatientName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Repo) PrescriptionExists(ctx context.Context, firstName, lastName string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Prescription{}).
		Where("first_name = ? AND last_name = ?", normalizePatientName(firstName), normalizePatientName(lastName)).
		Count(&n).Error; err != nil {
		return false, classify("count prescriptions", err)
	}
	return n > 0, nil
}

// ListPrescriptions 全部处方；search 按病人姓氏模糊过滤
func (r *Repo) ListPrescriptions(ctx context.Context, search string) ([]models.Prescription, error) {
	q := r.DB.WithContext(ctx).Model(&models.Prescription{}).Order("issued_on DESC, last_name, first_name")
	if pat, ok := likePattern(search); ok {
		q = q.Where("LOWER(last_name) LIKE ?", pat)
	}
	var ps []models.Prescription
	if err := q.Find(&ps).Error; err != nil {
		return nil, classify("list prescriptions", err)
	}
	for i := range ps {
		ps[i].Trim()
	}
	return ps, nil
}

func (r *Repo) ListPrescriptionsForPatient(ctx context.Context, firstName, lastName string) ([]models.Prescription, error) {
	var ps []models.Prescription
	if err := r.DB.WithContext(ctx).
		Where("first_name = ? AND last_name = ?", normalizePatientName(firstName), normalizePatientName(lastName)).
		Order("issued_on DESC").
		Find(&ps).Error; err != nil {
		return nil, classify("list patient prescriptions", err)
	}
	for i := range ps {
		ps[i].Trim()
	}
	return ps, nil
}

type IssuePrescriptionInput struct {
	FirstName   string
	LastName    string
	Medication  string // product ; dosage ; YYYY-MM-DD
	Quantity    int
	ClinicianID string
	Incident    string // location ; YYYY-MM-DD
	IssuedOn    datatypes.Date
}

// IssuePrescription dispenses medication against one batch and records the
// prescription. The duplicate check, stock check, stock decrement, prescription
// insert, incident counter decrement and ledger row commit together or not at
// all. A rejected attempt leaves every row as it was.
func (r *Repo) IssuePrescription(ctx context.Context, in IssuePrescriptionInput) (*models.Prescription, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	medKey, err := models.ParseMedicationDescriptor(in.Medication)
	if err != nil {
		return nil, err
	}
	ref, err := models.ParseIncidentDescriptor(in.Incident)
	if err != nil {
		return nil, err
	}
	first, last := normalizePatientName(in.FirstName), normalizePatientName(in.LastName)
	issued := in.IssuedOn
	if time.Time(issued).IsZero() {
		issued = models.Today()
	}

	var out *models.Prescription
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 同名病人只能有一张处方
		var n int64
		if err := tx.Model(&models.Prescription{}).
			Where("first_name = ? AND last_name = ?", first, last).
			Count(&n).Error; err != nil {
			return classify("count prescriptions", err)
		}
		if n > 0 {
			return ErrDuplicatePrescription
		}

		// 2) 锁住药品批次，检查库存
		var med models.MedicationBatch
		if err := whereMedicationKey(tx.Clauses(clause.Locking{Strength: "UPDATE"}), medKey).
			First(&med).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMedicationNotFound
			}
			return classify("lock medication", err)
		}
		if med.Quantity < in.Quantity {
			return &InsufficientStockError{Available: med.Quantity, Requested: in.Quantity}
		}

		// 3) 锁住事件
		var inc models.Incident
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("location = ? AND event_date = ?", ref.Location, ref.EventDate).
			First(&inc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIncidentNotFound
			}
			return classify("lock incident", err)
		}

		// 4) 扣库存：带数量条件的 CAS，防止并发超卖
		res := tx.Model(&models.MedicationBatch{}).
			Where("id = ? AND quantity >= ?", med.ID, in.Quantity).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - ?", in.Quantity),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return classify("decrement stock", res.Error)
		}
		if res.RowsAffected == 0 {
			var current int
			if err := tx.Model(&models.MedicationBatch{}).Select("quantity").
				Where("id = ?", med.ID).Scan(&current).Error; err != nil {
				return classify("reread stock", err)
			}
			return &InsufficientStockError{Available: current, Requested: in.Quantity}
		}
		med.Quantity -= in.Quantity

		// 5) 新建处方
		p := &models.Prescription{
			ID:               uuid.NewString(),
			FirstName:        first,
			LastName:         last,
			ClinicianID:      strings.TrimSpace(in.ClinicianID),
			Medication:       models.MedicationDescriptor(medKey),
			Quantity:         in.Quantity,
			IssuedOn:         issued,
			IncidentLocation: ref.Location,
			IncidentDate:     ref.EventDate,
		}
		if err := tx.Create(p).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicatePrescription
			}
			return classify("insert prescription", err)
		}

		// 6) 待救治人数减一，到 0 为止
		if err := tx.Model(&models.Incident{}).
			Where("id = ? AND remaining_to_treat > 0", inc.ID).
			Update("remaining_to_treat", gorm.Expr("remaining_to_treat - 1")).Error; err != nil {
			return classify("decrement incident", err)
		}

		// 7) 流水
		if err := appendMovement(tx, &med, -in.Quantity, models.MovementDispense, p.ClinicianID, &p.ID); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, classify("issue prescription", err)
	}
	return out, nil
}
