package db

import (
	"context"
	"strings"
	"time"

	"escrim/models"
)

func (r *Repo) InsertIncident(ctx context.Context, inc *models.Incident) error {
	inc.Trim()
	inc.EventDate = models.NewDate(time.Time(inc.EventDate))
	return classify("insert incident", r.DB.WithContext(ctx).Create(inc).Error)
}

func (r *Repo) ListIncidents(ctx context.Context, search string) ([]models.Incident, error) {
	q := r.DB.WithContext(ctx).Model(&models.Incident{}).Order("event_date DESC, location")
	if pat, ok := likePattern(search); ok {
		q = q.Where("LOWER(location) LIKE ?", pat)
	}
	var out []models.Incident
	if err := q.Find(&out).Error; err != nil {
		return nil, classify("list incidents", err)
	}
	for i := range out {
		out[i].Trim()
	}
	return out, nil
}

func (r *Repo) FindIncident(ctx context.Context, ref models.IncidentRef) (*models.Incident, error) {
	var inc models.Incident
	if err := r.DB.WithContext(ctx).
		Where("location = ? AND event_date = ?", strings.TrimSpace(ref.Location), models.NewDate(time.Time(ref.EventDate))).
		First(&inc).Error; err != nil {
		return nil, classify("find incident", err)
	}
	inc.Trim()
	return &inc, nil
}
