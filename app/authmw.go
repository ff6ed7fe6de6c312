package app

import (
	"errors"
	"net/http"

	"escrim/db"
	"escrim/models"
	"escrim/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const AppSessionCookie = "escrim_session"

// gin context keys set by AuthRequired
const (
	CtxUserID     = "userID"
	CtxIdentifier = "identifier"
	CtxRole       = "role"
)

func AuthRequired(appSess *session.AppSessionStore, repo *db.Repo, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				log.Error("load session", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// 确认用户仍存在；角色以数据库为准
		p, err := repo.FindPersonByID(c.Request.Context(), as.UserID)
		if errors.Is(err, db.ErrNotFound) {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if err != nil {
			log.Error("load session person", zap.String("user_id", as.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal error"})
			return
		}
		c.Set(CtxUserID, p.ID)
		c.Set(CtxIdentifier, p.Identifier)
		c.Set(CtxRole, p.Role)
		c.Next()
	}
}

// RoleRequired 只放行指定角色，必须挂在 AuthRequired 之后
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
	}
}

func UserID(c *gin.Context) string     { return c.GetString(CtxUserID) }
func Identifier(c *gin.Context) string { return c.GetString(CtxIdentifier) }

func Role(c *gin.Context) models.Role {
	v, _ := c.Get(CtxRole)
	r, _ := v.(models.Role)
	return r
}
