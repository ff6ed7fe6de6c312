package db

import (
	"context"
	"time"

	"escrim/models"
)

func (r *Repo) CreateAircraft(ctx context.Context, a *models.Aircraft) error {
	a.Trim()
	if a.State == "" {
		a.State = models.AircraftAvailable
	}
	return classify("create aircraft", r.DB.WithContext(ctx).Create(a).Error)
}

func (r *Repo) ListAircraft(ctx context.Context, search string) ([]models.Aircraft, error) {
	q := r.DB.WithContext(ctx).Model(&models.Aircraft{}).Order("name")
	if pat, ok := likePattern(search); ok {
		q = q.Where("LOWER(name) LIKE ?", pat)
	}
	var as []models.Aircraft
	if err := q.Find(&as).Error; err != nil {
		return nil, classify("list aircraft", err)
	}
	for i := range as {
		as[i].Trim()
	}
	return as, nil
}

func (r *Repo) FindAircraft(ctx context.Context, name string) (*models.Aircraft, error) {
	var a models.Aircraft
	if err := r.DB.WithContext(ctx).First(&a, "name = ?", name).Error; err != nil {
		return nil, classify("find aircraft", err)
	}
	a.Trim()
	return &a, nil
}

// UpdateAircraft 改状态；occupied 时记录关联事件，available 时清空
func (r *Repo) UpdateAircraft(ctx context.Context, name string, state models.AircraftState, incident *models.IncidentRef) (bool, error) {
	upd := map[string]any{
		"state":             state,
		"incident_location": nil,
		"incident_date":     nil,
		"updated_at":        time.Now().UTC(),
	}
	if state == models.AircraftOccupied && incident != nil {
		upd["incident_location"] = incident.Location
		upd["incident_date"] = models.NewDate(time.Time(incident.EventDate))
	}
	res := r.DB.WithContext(ctx).Model(&models.Aircraft{}).Where("name = ?", name).Updates(upd)
	if res.Error != nil {
		return false, classify("update aircraft", res.Error)
	}
	return res.RowsAffected > 0, nil
}
