package db

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"escrim/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// Persons

// FindPersonByIdentifier 精确匹配（区分大小写）；不存在返回 ErrNotFound
func (r *Repo) FindPersonByIdentifier(ctx context.Context, identifier string) (*models.Person, error) {
	var p models.Person
	if err := r.DB.WithContext(ctx).Where("identifier = ?", identifier).First(&p).Error; err != nil {
		return nil, classify("find person", err)
	}
	p.Trim()
	return &p, nil
}

func (r *Repo) FindPersonByID(ctx context.Context, id string) (*models.Person, error) {
	var p models.Person
	if err := r.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, classify("find person by id", err)
	}
	p.Trim()
	return &p, nil
}

func (r *Repo) PersonExists(ctx context.Context, identifier string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("identifier = ?", identifier).
		Count(&n).Error; err != nil {
		return false, classify("count persons", err)
	}
	return n > 0, nil
}

// CreatePerson 唯一索引兜底并发注册，重复时返回 ErrDuplicate
func (r *Repo) CreatePerson(ctx context.Context, p *models.Person) error {
	p.Trim()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.BirthDate = models.NewDate(time.Time(p.BirthDate))
	return classify("create person", r.DB.WithContext(ctx).Create(p).Error)
}

// VerifyIdentifierAndBirthDate 找回密码的身份校验：只看生日，不要旧密码
func (r *Repo) VerifyIdentifierAndBirthDate(ctx context.Context, identifier string, birthDate datatypes.Date) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("identifier = ? AND birth_date = ?", identifier, models.NewDate(time.Time(birthDate))).
		Count(&n).Error; err != nil {
		return false, classify("verify birth date", err)
	}
	return n > 0, nil
}

func (r *Repo) UpdatePassword(ctx context.Context, identifier, passwordHash string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("identifier = ?", identifier).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return false, classify("update password", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) TouchPersonLogin(ctx context.Context, personID, ip, ua string) error {
	now := time.Now().UTC()
	return classify("touch login", r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("id = ?", personID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": truncate(ua, 255),
		}).Error)
}

func (r *Repo) TouchPersonSeen(ctx context.Context, personID string) error {
	return classify("touch seen", r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("id = ?", personID).
		Update("last_seen_at", time.Now().UTC()).Error)
}

// truncate 按字节上限截断，不切开多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// likePattern 列表搜索统一用小写包含匹配
func likePattern(q string) (string, bool) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", false
	}
	return "%" + strings.ToLower(q) + "%", true
}
