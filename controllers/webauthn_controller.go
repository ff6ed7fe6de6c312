// controllers/webauthn_controller.go
package controllers

import (
	"errors"
	"net/http"
	"strings"

	"escrim/app"
	"escrim/db"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===== 绑定 passkey（已登录，先用密码登录一次） =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, app.UserID(c))
	if err != nil {
		s.respondError(c, "begin passkey registration", err)
		return
	}

	opts, sd, err := s.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(webauthn.Credentials(wUser.creds).CredentialDescriptors()),
	)
	if err != nil {
		s.respondError(c, "begin passkey registration", err)
		return
	}

	if err := s.Sess.SaveReg(ctx, wUser.person.ID, sd); err != nil {
		s.respondError(c, "save passkey ceremony", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, app.UserID(c))
	if err != nil {
		s.respondError(c, "finish passkey registration", err)
		return
	}

	sd, err := s.Sess.TakeReg(ctx, wUser.person.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}

	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	if err := s.Repo.AddCredential(ctx, fromWaCred(wUser.person.ID, cred)); err != nil {
		s.respondError(c, "store passkey", err)
		return
	}
	s.Log.Info("passkey added", zap.String("user_id", wUser.person.ID))
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// ===== passkey 登录 =====

type loginBeginReq struct {
	Identifier string `json:"identifier"` // 为空走 discoverable 登录
}
type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginPasskeyLogin(c *gin.Context) {
	var req loginBeginReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": "bad request"})
			return
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	if identifier == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, err2 := s.loadWAUserByIdentifier(ctx, identifier)
		if errors.Is(err2, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, app.H{"error": "This identifier does not exist.", "field": "identifier"})
			return
		}
		if err2 != nil {
			s.respondError(c, "begin passkey login", err2)
			return
		}
		if len(wUser.creds) == 0 {
			c.JSON(http.StatusBadRequest, app.H{"error": "no passkey registered for this identifier"})
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		s.respondError(c, "begin passkey login", err)
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.SaveAuth(ctx, sid, sd); err != nil {
		s.respondError(c, "save passkey ceremony", err)
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

func (s *Srv) FinishPasskeyLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing sessionId"})
		return
	}
	ip, ua := c.ClientIP(), c.Request.UserAgent()

	ctx, cancel := reqCtx(c)
	defer cancel()
	sd, err := s.Sess.TakeAuth(ctx, sid)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}

	var (
		wUser *waUser
		cred  *webauthn.Credential
	)
	if identifier := strings.ToLower(strings.TrimSpace(c.Query("identifier"))); identifier != "" {
		wUser, err = s.loadWAUserByIdentifier(ctx, identifier)
		if err != nil {
			s.respondError(c, "finish passkey login", err)
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			p, _, err := s.Repo.FindPersonByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			w, err := s.waUserFor(ctx, p)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
		var user webauthn.User
		user, cred, err = s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err == nil {
			wUser = user.(*waUser)
		}
	}
	if err != nil {
		s.Metrics.Logins.WithLabelValues("passkey", "denied").Inc()
		c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
		return
	}
	if err := s.Repo.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning); err != nil {
		s.Log.Warn("update passkey counter", zap.Error(err))
	}

	if err := s.issueSession(ctx, c.Writer, &wUser.person, ip, ua); err != nil {
		s.Log.Error("create app session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	s.Metrics.Logins.WithLabelValues("passkey", "ok").Inc()
	c.JSON(http.StatusOK, app.H{"ok": true, "identifier": wUser.person.Identifier, "role": wUser.person.Role})
}
