package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"escrim/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	paracetamol  = "Paracétamol ; 500mg ; 2025-01-01"
	lyonIncident = "Lyon ; 2024-06-01"
)

func seedStock(t *testing.T, r *Repo, qty, injured int) {
	t.Helper()
	ctx := context.Background()
	_, err := r.InsertMedicationBatch(ctx, &models.MedicationBatch{
		Product: "Paracétamol", DCI: "paracetamol", Dosage: "500mg",
		ExpiryDate: models.NewDate(mustDate(t, "2025-01-01")),
		Quantity:   qty, Lot: "L1", Class: "Antalgique", CrateNumber: 3, CrateName: "Caisse 3",
	}, "logi")
	require.NoError(t, err)
	require.NoError(t, r.InsertIncident(ctx, &models.Incident{
		Location: "Lyon", TotalInjured: injured, RemainingToTreat: injured,
		EventDate: models.NewDate(mustDate(t, "2024-06-01")),
	}))
}

func stockOf(t *testing.T, r *Repo) int {
	t.Helper()
	k, err := models.ParseMedicationDescriptor(paracetamol)
	require.NoError(t, err)
	q, err := r.GetMedicationQuantity(context.Background(), k)
	require.NoError(t, err)
	return q
}

func remainingOf(t *testing.T, r *Repo) int {
	t.Helper()
	ref, err := models.ParseIncidentDescriptor(lyonIncident)
	require.NoError(t, err)
	inc, err := r.FindIncident(context.Background(), ref)
	require.NoError(t, err)
	return inc.RemainingToTreat
}

func issue(r *Repo, first, last string, qty int) (*models.Prescription, error) {
	return r.IssuePrescription(context.Background(), IssuePrescriptionInput{
		FirstName: first, LastName: last,
		Medication: paracetamol, Quantity: qty,
		ClinicianID: "dr.house", Incident: lyonIncident,
	})
}

func TestIssuePrescription_DispensesAndRejects(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 5, 3)

	p, err := issue(r, "Jean", "Dupont", 3)
	require.NoError(t, err)
	assert.Equal(t, "jean", p.FirstName)
	assert.Equal(t, "dupont", p.LastName)
	assert.Equal(t, paracetamol, p.Medication)
	assert.Equal(t, 2, stockOf(t, r))
	assert.Equal(t, 2, remainingOf(t, r))

	_, err = issue(r, "Marie", "Martin", 10)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 10, stockErr.Requested)

	// 被拒绝的请求不改任何数据
	assert.Equal(t, 2, stockOf(t, r))
	assert.Equal(t, 2, remainingOf(t, r))
	exists, err := r.PrescriptionExists(context.Background(), "Marie", "Martin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIssuePrescription_IssueDate(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 10, 5)

	p, err := r.IssuePrescription(context.Background(), IssuePrescriptionInput{
		FirstName: "Jean", LastName: "Dupont",
		Medication: paracetamol, Quantity: 1,
		ClinicianID: "dr.house", Incident: lyonIncident,
		IssuedOn: models.NewDate(mustDate(t, "2024-06-02")),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", models.FormatDate(p.IssuedOn))

	ps, err := r.ListPrescriptionsForPatient(context.Background(), "jean", "dupont")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "2024-06-02", models.FormatDate(ps[0].IssuedOn))

	// 未指定日期时用当天
	p, err = issue(r, "Marie", "Martin", 1)
	require.NoError(t, err)
	assert.Equal(t, models.FormatDate(models.Today()), models.FormatDate(p.IssuedOn))
}

func TestIssuePrescription_DuplicatePatient(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 10, 5)

	_, err := issue(r, "Jean", "Dupont", 1)
	require.NoError(t, err)

	_, err = issue(r, " JEAN", "dupont ", 1)
	assert.ErrorIs(t, err, ErrDuplicatePrescription)
	assert.Equal(t, 9, stockOf(t, r))
	assert.Equal(t, 4, remainingOf(t, r))

	ps, err := r.ListPrescriptionsForPatient(context.Background(), "Jean", "DUPONT")
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestIssuePrescription_RemainingClampsAtZero(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 10, 1)

	_, err := issue(r, "Jean", "Dupont", 1)
	require.NoError(t, err)
	_, err = issue(r, "Marie", "Martin", 1)
	require.NoError(t, err)

	assert.Equal(t, 0, remainingOf(t, r))
	assert.Equal(t, 8, stockOf(t, r))
}

func TestIssuePrescription_UnknownReferences(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 10, 1)
	ctx := context.Background()

	_, err := r.IssuePrescription(ctx, IssuePrescriptionInput{
		FirstName: "a", LastName: "b", Medication: "Ibuprofène ; 200mg ; 2025-01-01",
		Quantity: 1, Incident: lyonIncident,
	})
	assert.ErrorIs(t, err, ErrMedicationNotFound)

	_, err = r.IssuePrescription(ctx, IssuePrescriptionInput{
		FirstName: "a", LastName: "b", Medication: paracetamol,
		Quantity: 1, Incident: "Paris ; 2024-06-01",
	})
	assert.ErrorIs(t, err, ErrIncidentNotFound)

	_, err = r.IssuePrescription(ctx, IssuePrescriptionInput{
		FirstName: "a", LastName: "b", Medication: "Paracétamol ; 500mg",
		Quantity: 1, Incident: lyonIncident,
	})
	var descErr *models.DescriptorError
	assert.ErrorAs(t, err, &descErr)

	_, err = issue(r, "a", "b", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Equal(t, 10, stockOf(t, r))
	assert.Equal(t, 1, remainingOf(t, r))
}

func TestIssuePrescription_ConcurrentNeverOversells(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 5, 20)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for _, n := range names {
		wg.Add(1)
		go func(last string) {
			defer wg.Done()
			_, err := issue(r, "patient", last, 2)
			mu.Lock()
			defer mu.Unlock()
			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &stockErr):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(n)
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	assert.Equal(t, len(names)-2, rejected)
	assert.Equal(t, 1, stockOf(t, r))
	assert.Equal(t, 18, remainingOf(t, r))
}

func TestInsertMedicationBatch_AccumulatesAndRecordsMovements(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 5, 3)
	ctx := context.Background()

	m, err := r.InsertMedicationBatch(ctx, &models.MedicationBatch{
		Product: "Paracétamol", DCI: "paracetamol", Dosage: "500mg",
		ExpiryDate: models.NewDate(mustDate(t, "2025-01-01")),
		Quantity:   7, Lot: "L2", Class: "Antalgique", CrateNumber: 4, CrateName: "Caisse 4",
	}, "logi")
	require.NoError(t, err)
	assert.Equal(t, 12, m.Quantity)
	assert.Equal(t, "L2", m.Lot)

	_, err = issue(r, "Jean", "Dupont", 2)
	require.NoError(t, err)

	key, err := models.ParseMedicationDescriptor(paracetamol)
	require.NoError(t, err)
	mvs, err := r.ListStockMovements(ctx, &key, 0)
	require.NoError(t, err)
	require.Len(t, mvs, 3)

	deltas := map[models.MovementReason][]int{}
	for _, mv := range mvs {
		deltas[mv.Reason] = append(deltas[mv.Reason], mv.Delta)
	}
	assert.ElementsMatch(t, []int{5, 7}, deltas[models.MovementRestock])
	assert.Equal(t, []int{-2}, deltas[models.MovementDispense])

	_, err = r.InsertMedicationBatch(ctx, &models.MedicationBatch{Product: "X", Dosage: "1", Quantity: 0}, "logi")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetMedicationQuantity(t *testing.T) {
	r := newTestRepo(t)
	seedStock(t, r, 5, 3)
	key, err := models.ParseMedicationDescriptor(paracetamol)
	require.NoError(t, err)

	_, err = r.SetMedicationQuantity(context.Background(), key, -1)
	assert.ErrorIs(t, err, ErrNegativeQuantity)

	ok, err := r.SetMedicationQuantity(context.Background(), key, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, stockOf(t, r))

	key.Dosage = "1g"
	_, err = r.GetMedicationQuantity(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLowStock(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	add := func(product, dosage, expiry string, qty int) {
		_, err := r.InsertMedicationBatch(ctx, &models.MedicationBatch{
			Product: product, DCI: product, Dosage: dosage,
			ExpiryDate: models.NewDate(mustDate(t, expiry)), Quantity: qty,
			Lot: "L", Class: "C", CrateNumber: 1, CrateName: "C1",
		}, "logi")
		require.NoError(t, err)
	}
	// 不同有效期合并计算
	add("Morphine", "10mg", "2025-01-01", 4)
	add("Morphine", "10mg", "2026-01-01", 4)
	add("Aspirine", "500mg", "2025-01-01", 30)
	add("Aspirine", "100mg", "2025-01-01", 2)

	low, err := r.LowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, LowStockEntry{Product: "Aspirine", DCI: "Aspirine", Dosage: "100mg", Quantity: 2, Missing: 8}, low[0])
	assert.Equal(t, LowStockEntry{Product: "Morphine", DCI: "Morphine", Dosage: "10mg", Quantity: 8, Missing: 2}, low[1])
}
