package db

import (
	"context"
	"time"

	"escrim/models"
)

// Passkeys

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return classify("add credential", r.DB.WithContext(ctx).Create(c).Error)
}

func (r *Repo) LoadPersonCredentials(ctx context.Context, personID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("person_id = ?", personID).Find(&cs).Error; err != nil {
		return nil, classify("load credentials", err)
	}
	return cs, nil
}

func (r *Repo) CountCredentials(ctx context.Context, personID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("person_id = ?", personID).
		Count(&n).Error
	return n, classify("count credentials", err)
}

func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return classify("update credential", r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  time.Now().UTC(),
		}).Error)
}

func (r *Repo) FindPersonByCredentialID(ctx context.Context, credID []byte) (*models.Person, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, classify("find credential", err)
	}
	p, err := r.FindPersonByID(ctx, c.PersonID)
	if err != nil {
		return nil, nil, err
	}
	return p, &c, nil
}
