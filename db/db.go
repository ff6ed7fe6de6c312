package db

import (
	"fmt"
	"time"

	"escrim/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
	LogLevel     logger.LogLevel
}

func (o Options) DSN() string {
	ssl := o.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		o.Host, o.User, o.Password, o.Name, o.Port, ssl,
	)
}

// ConnectDB 连接 Postgres 并迁移；失败直接退出进程
func ConnectDB(o Options, log *zap.Logger) *gorm.DB {
	conn, err := Open(postgres.Open(o.DSN()), o.LogLevel)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := conn.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", zap.Error(err))
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(conn); err != nil {
		log.Fatal("failed to migrate models", zap.Error(err))
	}
	log.Info("database connected", zap.String("host", o.Host), zap.String("db", o.Name))
	return conn
}

func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	if level == 0 {
		level = logger.Warn
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Person{}, &models.Credential{},
		&models.MedicationBatch{}, &models.Aircraft{}, &models.Incident{},
		&models.Prescription{}, &models.StockMovement{},
	); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// 列表页按名称模糊搜索
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_lower_product
	  ON %s (LOWER(product));
	`, models.MedicationTable, models.MedicationTable)).Error; err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_lower_last_name
	  ON %s (LOWER(last_name));
	`, models.PrescriptionTable, models.PrescriptionTable)).Error; err != nil {
		return err
	}

	// 已被占用的飞机必须挂一个事件
	if err := db.Exec(fmt.Sprintf(`
	  DO $$ BEGIN
	    ALTER TABLE %s ADD CONSTRAINT chk_aircraft_occupied_incident
	    CHECK (state <> 'occupied' OR (incident_location IS NOT NULL AND incident_date IS NOT NULL));
	  EXCEPTION WHEN duplicate_object THEN NULL;
	  END $$;
	`, models.AircraftTable)).Error; err != nil {
		return err
	}
	return nil
}
