// controllers/logistics_controller.go
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"escrim/app"
	"escrim/models"
	"escrim/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LogisticsController struct{ *Srv }

func NewLogisticsController(s *Srv) *LogisticsController { return &LogisticsController{Srv: s} }

// GET /api/logistics/medications?q=
func (lc *LogisticsController) ListMedications(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ms, err := lc.Repo.ListMedicationStock(ctx, c.Query("q"))
	if err != nil {
		lc.respondError(c, "list medications", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": ms})
}

type restockReq struct {
	Product     string      `json:"product"`
	DCI         string      `json:"dci"`
	Dosage      string      `json:"dosage"`
	ExpiryDate  string      `json:"expiryDate"`
	Lot         string      `json:"lot"`
	CrateNumber json.Number `json:"crateNumber"`
	Class       string      `json:"class"`
	CrateName   string      `json:"crateName"`
	Quantity    int         `json:"quantity"`
}

// POST /api/logistics/medications 入库；同一批次累加数量
func (lc *LogisticsController) Restock(c *gin.Context) {
	var in restockReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	expiry, ok := optionalDate(in.ExpiryDate)
	if !ok {
		badRequest(c, "expiryDate", "Expiry date must use the YYYY-MM-DD format.")
		return
	}
	crate, err := validation.MedicationRestock(validation.Restock{
		Product: in.Product, DCI: in.DCI, Dosage: in.Dosage, ExpiryDate: expiry,
		Lot: in.Lot, CrateNumber: in.CrateNumber.String(), Class: in.Class,
		CrateName: in.CrateName, Quantity: in.Quantity,
	}, time.Now())
	if err != nil {
		lc.respondError(c, "restock", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := lc.Repo.InsertMedicationBatch(ctx, &models.MedicationBatch{
		Product:     in.Product,
		DCI:         in.DCI,
		Dosage:      in.Dosage,
		ExpiryDate:  validation.Date(expiry),
		Quantity:    in.Quantity,
		Lot:         in.Lot,
		Class:       in.Class,
		CrateNumber: crate,
		CrateName:   in.CrateName,
	}, app.Identifier(c))
	if err != nil {
		lc.respondError(c, "restock", err)
		return
	}
	lc.Metrics.Restocks.Inc()
	lc.Metrics.UnitsRestocked.Add(float64(in.Quantity))
	lc.Log.Info("medication restocked",
		zap.String("medication", models.MedicationDescriptor(m.Key())),
		zap.Int("added", in.Quantity), zap.Int("quantity", m.Quantity),
		zap.String("actor", app.Identifier(c)))
	c.JSON(http.StatusCreated, m)
}

// GET /api/logistics/medications/low-stock?threshold=
func (lc *LogisticsController) LowStock(c *gin.Context) {
	threshold := lc.Cfg.LowStockThreshold
	if v := c.Query("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "threshold", "Threshold must be a positive integer.")
			return
		}
		threshold = n
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	low, err := lc.Repo.LowStock(ctx, threshold)
	if err != nil {
		lc.respondError(c, "low stock", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"threshold": threshold, "items": low})
}

// GET /api/logistics/medications/movements?medication=<descriptor>&limit=
func (lc *LogisticsController) ListMovements(c *gin.Context) {
	var key *models.MedicationKey
	if d := strings.TrimSpace(c.Query("medication")); d != "" {
		k, err := models.ParseMedicationDescriptor(d)
		if err != nil {
			lc.respondError(c, "list movements", err)
			return
		}
		key = &k
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	mvs, err := lc.Repo.ListStockMovements(ctx, key, limit)
	if err != nil {
		lc.respondError(c, "list movements", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": mvs})
}

// GET /api/logistics/aircraft?q=
func (lc *LogisticsController) ListAircraft(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	as, err := lc.Repo.ListAircraft(ctx, c.Query("q"))
	if err != nil {
		lc.respondError(c, "list aircraft", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": as})
}

// POST /api/logistics/aircraft 登记飞机（初始为 available）
func (lc *LogisticsController) CreateAircraft(c *gin.Context) {
	var in models.Aircraft
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(c, "name", "Aircraft name is required.")
		return
	}
	in.State = models.AircraftAvailable
	in.IncidentLocation, in.IncidentDate = nil, nil
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := lc.Repo.CreateAircraft(ctx, &in); err != nil {
		lc.respondError(c, "create aircraft", err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

type aircraftUpdateReq struct {
	State    models.AircraftState `json:"state"`
	Incident string               `json:"incident"` // location ; YYYY-MM-DD
}

// PUT /api/logistics/aircraft/:name
func (lc *LogisticsController) UpdateAircraft(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	var in aircraftUpdateReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := validation.AircraftRequest(in.State, name, in.Incident); err != nil {
		lc.respondError(c, "update aircraft", err)
		return
	}
	current, err := lc.Repo.FindAircraft(ctx, name)
	if err != nil {
		lc.respondError(c, "update aircraft", err)
		return
	}
	if err := validation.AircraftStateChange(in.State, current.State); err != nil {
		lc.respondError(c, "update aircraft", err)
		return
	}

	var ref *models.IncidentRef
	if in.State == models.AircraftOccupied {
		r, err := models.ParseIncidentDescriptor(in.Incident)
		if err != nil {
			lc.respondError(c, "update aircraft", err)
			return
		}
		// 只能挂到已登记的事件上
		inc, err := lc.Repo.FindIncident(ctx, r)
		if err != nil {
			lc.respondError(c, "update aircraft", err)
			return
		}
		rr := inc.Ref()
		ref = &rr
	}
	if _, err := lc.Repo.UpdateAircraft(ctx, name, in.State, ref); err != nil {
		lc.respondError(c, "update aircraft", err)
		return
	}
	updated, err := lc.Repo.FindAircraft(ctx, name)
	if err != nil {
		lc.respondError(c, "update aircraft", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
