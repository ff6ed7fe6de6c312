// controllers/medic_controller.go
package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"escrim/app"
	"escrim/db"
	"escrim/models"
	"escrim/validation"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type MedicController struct{ *Srv }

func NewMedicController(s *Srv) *MedicController { return &MedicController{Srv: s} }

// GET /api/medic/incidents?q=
func (mc *MedicController) ListIncidents(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	incs, err := mc.Repo.ListIncidents(ctx, c.Query("q"))
	if err != nil {
		mc.respondError(c, "list incidents", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": incs})
}

type incidentReq struct {
	Location         string      `json:"location"`
	TotalInjured     json.Number `json:"totalInjured"`
	RemainingToTreat json.Number `json:"remainingToTreat"`
	EventDate        string      `json:"eventDate"`
}

// CreateIncident 医生和后勤都可以登记事件
func (s *Srv) CreateIncident(c *gin.Context) {
	var in incidentReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	date, ok := optionalDate(in.EventDate)
	if !ok {
		badRequest(c, "eventDate", "Incident date must use the YYYY-MM-DD format.")
		return
	}
	counts, err := validation.IncidentInput(in.Location, in.TotalInjured.String(), in.RemainingToTreat.String(), date, time.Now())
	if err != nil {
		s.respondError(c, "create incident", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	inc := &models.Incident{
		Location:         in.Location,
		TotalInjured:     counts.Total,
		RemainingToTreat: counts.Remaining,
		EventDate:        validation.Date(date),
	}
	if err := s.Repo.InsertIncident(ctx, inc); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			c.JSON(http.StatusConflict, app.H{"error": "This incident is already registered.", "field": "location"})
			return
		}
		s.respondError(c, "create incident", err)
		return
	}
	c.JSON(http.StatusCreated, inc)
}

// GET /api/medic/prescriptions?q=
func (mc *MedicController) ListPrescriptions(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ps, err := mc.Repo.ListPrescriptions(ctx, c.Query("q"))
	if err != nil {
		mc.respondError(c, "list prescriptions", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": ps})
}

type prescriptionReq struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Medication string `json:"medication"` // product ; dosage ; YYYY-MM-DD
	Incident   string `json:"incident"`   // location ; YYYY-MM-DD
	Quantity   int    `json:"quantity"`
}

// POST /api/medic/prescriptions 开处方并出库
func (mc *MedicController) IssuePrescription(c *gin.Context) {
	var in prescriptionReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := validation.Prescription(in.FirstName, in.LastName, in.Medication, in.Incident, in.Quantity); err != nil {
		mc.Metrics.PrescriptionsDenied.WithLabelValues("invalid").Inc()
		mc.respondError(c, "issue prescription", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := mc.Repo.IssuePrescription(ctx, db.IssuePrescriptionInput{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Medication:  in.Medication,
		Quantity:    in.Quantity,
		ClinicianID: app.Identifier(c),
		Incident:    in.Incident,
	})
	if err != nil {
		mc.Metrics.PrescriptionsDenied.WithLabelValues(denialReason(err)).Inc()
		mc.respondError(c, "issue prescription", err)
		return
	}
	mc.Metrics.PrescriptionsIssued.Inc()
	mc.Metrics.UnitsDispensed.Add(float64(p.Quantity))
	mc.Log.Info("prescription issued",
		zap.String("prescription_id", p.ID),
		zap.String("medication", p.Medication),
		zap.Int("quantity", p.Quantity),
		zap.String("clinician", p.ClinicianID))
	c.JSON(http.StatusCreated, p)
}

func denialReason(err error) string {
	var stockErr *db.InsufficientStockError
	var descErr *models.DescriptorError
	switch {
	case errors.As(err, &stockErr):
		return "stock"
	case errors.Is(err, db.ErrDuplicatePrescription):
		return "duplicate"
	case errors.Is(err, db.ErrMedicationNotFound), errors.Is(err, db.ErrIncidentNotFound):
		return "not_found"
	case errors.As(err, &descErr), errors.Is(err, db.ErrInvalidQuantity):
		return "invalid"
	default:
		return "error"
	}
}

// GET /api/medic/options 下拉框：有库存的批次 + 全部事件
func (mc *MedicController) Options(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ms, err := mc.Repo.ListMedicationStock(ctx, "")
	if err != nil {
		mc.respondError(c, "prescription options", err)
		return
	}
	incs, err := mc.Repo.ListIncidents(ctx, "")
	if err != nil {
		mc.respondError(c, "prescription options", err)
		return
	}
	meds := lo.FilterMap(ms, func(m models.MedicationBatch, _ int) (string, bool) {
		return models.MedicationDescriptor(m.Key()), m.Quantity > 0
	})
	incidents := lo.Map(incs, func(i models.Incident, _ int) string {
		return models.IncidentDescriptor(i.Ref())
	})
	c.JSON(http.StatusOK, app.H{"medications": meds, "incidents": incidents})
}
