// controllers/patient_controller.go
package controllers

import (
	"net/http"

	"escrim/app"

	"github.com/gin-gonic/gin"
)

type PatientController struct{ *Srv }

func NewPatientController(s *Srv) *PatientController { return &PatientController{Srv: s} }

// GET /api/patient/file 伤员查看自己的信息和处方
func (pc *PatientController) File(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := pc.Repo.FindPersonByID(ctx, app.UserID(c))
	if err != nil {
		pc.respondError(c, "patient file", err)
		return
	}
	ps, err := pc.Repo.ListPrescriptionsForPatient(ctx, p.FirstName, p.LastName)
	if err != nil {
		pc.respondError(c, "patient file", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"person": p, "prescriptions": ps})
}
