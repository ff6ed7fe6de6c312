package app

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"escrim/db"
	"escrim/metrics"
	"escrim/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	Repo    *db.Repo
	RDB     *redis.Client
	WA      *webauthn.WebAuthn
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Config  Config

	appSess    *session.AppSessionStore
	ceremonies *session.Store
}

// Config 从环境变量读取
type Config struct {
	Port      string
	DB        db.Options
	RedisAddr string
	RedisPwd  string
	WebOrigin string
	RPID      string
	RPOrigins []string

	SessionTTL        time.Duration // WebAuthn 仪式
	AppSessionTTL     time.Duration // 登录会话
	LowStockThreshold int
	LogLevel          string
	LogFormat         string
}

func (c Config) SecureCookies() bool { return strings.HasPrefix(c.WebOrigin, "https://") }

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Ceremonies() *session.Store            { return a.ceremonies }

func MustNew(cfg Config, log *zap.Logger) *App {
	// --- DB: Postgres ---
	dbConn := db.ConnectDB(cfg.DB, log)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	// --- WebAuthn RP ---
	wa, err := NewWebAuthn(cfg)
	if err != nil {
		log.Fatal("webauthn config", zap.Error(err))
	}

	m := metrics.New()
	return &App{
		Router: NewRouter(cfg, log, m),
		DB:     dbConn, Repo: db.NewRepo(dbConn),
		RDB: rdb, WA: wa, Log: log, Metrics: m, Config: cfg,
		appSess:    session.NewAppSessionStore(rdb, cfg.AppSessionTTL),
		ceremonies: session.NewStore(rdb, cfg.SessionTTL),
	}
}

func NewWebAuthn(cfg Config) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName: "ESCRIM",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
}

// NewRouter 不带任何路由的 gin 引擎：恢复、访问日志、CORS
func NewRouter(cfg Config, log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log, m))
	useCORS(r, cfg.WebOrigin)
	return r
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.Log.Sync()
}

func LoadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	getInt := func(k string, def int) int {
		if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
			return n
		}
		return def
	}

	originsCSV := get("RP_ORIGINS", "http://localhost:5173")
	var origins []string
	for _, o := range strings.Split(originsCSV, ",") {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}

	dbLevel := logger.Warn
	if get("LOG_LEVEL", "info") == "debug" {
		dbLevel = logger.Info
	}

	return Config{
		Port: get("PORT", "3001"),
		DB: db.Options{
			Host:         get("DB_HOST", "127.0.0.1"),
			User:         get("DB_USER", "postgres"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         get("DB_NAME", "escrim"),
			Port:         get("DB_PORT", "5432"),
			SSLMode:      get("DB_SSLMODE", "disable"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
			LogLevel:     dbLevel,
		},
		RedisAddr:         get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:          os.Getenv("REDIS_PASSWORD"),
		WebOrigin:         get("WEB_ORIGIN", "http://localhost:5173"),
		RPID:              get("RP_ID", "localhost"),
		RPOrigins:         origins,
		SessionTTL:        time.Duration(getInt("SESSION_TTL_SECONDS", 600)) * time.Second,
		AppSessionTTL:     time.Duration(getInt("APP_SESSION_TTL_HOURS", 24)) * time.Hour,
		LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 10),
		LogLevel:          get("LOG_LEVEL", "info"),
		LogFormat:         get("LOG_FORMAT", "json"),
	}
}
