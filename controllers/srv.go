// controllers/srv.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"escrim/app"
	"escrim/db"
	"escrim/metrics"
	"escrim/models"
	"escrim/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 每个请求的数据库调用上限
const requestTimeout = 5 * time.Second

type Srv struct {
	WA      *webauthn.WebAuthn
	Repo    *db.Repo
	Sess    *session.Store
	AppSess *session.AppSessionStore
	Cfg     app.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:      a.WA,
		Repo:    a.Repo,
		Sess:    a.Ceremonies(),
		AppSess: a.AppSessions(),
		Cfg:     a.Config,
		Log:     a.Log,
		Metrics: a.Metrics,
	}
}

func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// --- helpers ---

// 统一设置业务会话 Cookie；maxAge < 0 表示删除
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	age := int(maxAge / time.Second)
	if maxAge < 0 {
		age = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
		MaxAge:   age,
	})
}

// 登录成功：创建会话 + 记录登录快照
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, p *models.Person, ip, ua string) error {
	if err := s.Repo.TouchPersonLogin(ctx, p.ID, ip, ua); err != nil {
		s.Log.Warn("touch login", zap.String("user_id", p.ID), zap.Error(err))
	}
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, p); err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}

// WebAuthn: DB person -> waUser
type waUser struct {
	person models.Person
	creds  []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.person.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.person.Identifier }
func (u *waUser) WebAuthnDisplayName() string                { return u.person.FirstName + " " + u.person.LastName }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(personID string, cred *webauthn.Credential) *models.Credential {
	return &models.Credential{
		PersonID:        personID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func (s *Srv) waUserFor(ctx context.Context, p *models.Person) (*waUser, error) {
	cs, err := s.Repo.LoadPersonCredentials(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{person: *p, creds: ws}, nil
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	p, err := s.Repo.FindPersonByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, p)
}

func (s *Srv) loadWAUserByIdentifier(ctx context.Context, identifier string) (*waUser, error) {
	p, err := s.Repo.FindPersonByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, p)
}
