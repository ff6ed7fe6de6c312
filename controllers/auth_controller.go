package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"escrim/app"
	"escrim/db"
	"escrim/models"
	"escrim/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// optionalDate 空串表示没填；格式不对单独报错
func optionalDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, false
	}
	t := time.Time(d)
	return &t, true
}

type loginReq struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// POST /auth/login
func (s *Srv) Login(c *gin.Context) {
	var in loginReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := validation.Login(in.Identifier, in.Password); err != nil {
		s.respondError(c, "login", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	identifier := strings.ToLower(strings.TrimSpace(in.Identifier))
	p, err := s.Repo.FindPersonByIdentifier(ctx, identifier)
	if errors.Is(err, db.ErrNotFound) {
		s.Metrics.Logins.WithLabelValues("password", "unknown").Inc()
		c.JSON(http.StatusUnauthorized, app.H{"error": "This identifier does not exist.", "field": "identifier"})
		return
	}
	if err != nil {
		s.respondError(c, "login", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(in.Password)) != nil {
		s.Metrics.Logins.WithLabelValues("password", "denied").Inc()
		c.JSON(http.StatusUnauthorized, app.H{"error": "Incorrect password.", "field": "password"})
		return
	}

	if err := s.issueSession(ctx, c.Writer, p, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.Log.Error("create app session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	s.Metrics.Logins.WithLabelValues("password", "ok").Inc()
	c.JSON(http.StatusOK, app.H{
		"ok":         true,
		"identifier": p.Identifier,
		"role":       p.Role,
		"firstName":  p.FirstName,
		"lastName":   p.LastName,
	})
}

type registerReq struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	BirthDate string      `json:"birthDate"` // YYYY-MM-DD
	Password  string      `json:"password"`
	Role      models.Role `json:"role"`
}

// POST /auth/register
func (s *Srv) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	birth, ok := optionalDate(in.BirthDate)
	if !ok {
		badRequest(c, "birthDate", "Birth date must use the YYYY-MM-DD format.")
		return
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if err := validation.Registration(first, last, in.Password, birth, in.Role, time.Now()); err != nil {
		s.respondError(c, "register", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	identifier := validation.GenerateIdentifier(first, last)
	exists, err := s.Repo.PersonExists(ctx, identifier)
	if err != nil {
		s.respondError(c, "register", err)
		return
	}
	if exists {
		c.JSON(http.StatusConflict, app.H{"error": "This identifier already exists.", "field": "identifier"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.respondError(c, "hash password", err)
		return
	}
	p := &models.Person{
		Identifier:   identifier,
		FirstName:    first,
		LastName:     last,
		BirthDate:    validation.Date(birth),
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.Repo.CreatePerson(ctx, p); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			c.JSON(http.StatusConflict, app.H{"error": "This identifier already exists.", "field": "identifier"})
			return
		}
		s.respondError(c, "register", err)
		return
	}
	s.Log.Info("person registered", zap.String("identifier", p.Identifier), zap.String("role", string(p.Role)))
	c.JSON(http.StatusCreated, app.H{"identifier": p.Identifier, "role": p.Role})
}

type passwordReq struct {
	Identifier string `json:"identifier"`
	BirthDate  string `json:"birthDate"`
	Password   string `json:"password"`
}

// POST /auth/password 忘记密码：凭标识 + 生日重置
func (s *Srv) ChangePassword(c *gin.Context) {
	var in passwordReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	birth, ok := optionalDate(in.BirthDate)
	if !ok {
		badRequest(c, "birthDate", "Birth date must use the YYYY-MM-DD format.")
		return
	}
	if err := validation.PasswordChange(in.Identifier, birth, in.Password); err != nil {
		s.respondError(c, "change password", err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	identifier := strings.ToLower(strings.TrimSpace(in.Identifier))
	p, err := s.Repo.FindPersonByIdentifier(ctx, identifier)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusBadRequest, app.H{"error": "Identifier or birth date is incorrect.", "field": "identifier"})
		return
	}
	if err != nil {
		s.respondError(c, "change password", err)
		return
	}
	match, err := s.Repo.VerifyIdentifierAndBirthDate(ctx, identifier, validation.Date(birth))
	if err != nil {
		s.respondError(c, "change password", err)
		return
	}
	if !match {
		c.JSON(http.StatusBadRequest, app.H{"error": "Identifier or birth date is incorrect.", "field": "birthDate"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.respondError(c, "hash password", err)
		return
	}
	if _, err := s.Repo.UpdatePassword(ctx, identifier, string(hash)); err != nil {
		s.respondError(c, "change password", err)
		return
	}
	if err := s.AppSess.RevokeAllForPerson(ctx, p.ID); err != nil {
		s.Log.Warn("revoke sessions", zap.String("user_id", p.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /auth/logout
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.setAppCookie(c.Writer, "", -1)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /auth/whoami
func (s *Srv) WhoAmI(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	uid := app.UserID(c)
	p, err := s.Repo.FindPersonByID(ctx, uid)
	if err != nil {
		s.respondError(c, "whoami", err)
		return
	}
	passkeys, err := s.Repo.CountCredentials(ctx, uid)
	if err != nil {
		s.respondError(c, "whoami", err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"userID":     p.ID,
		"identifier": p.Identifier,
		"firstName":  p.FirstName,
		"lastName":   p.LastName,
		"role":       app.Role(c),
		"passkeys":   passkeys,
	})
}
