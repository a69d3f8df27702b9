package sqlstore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the SQLite store and migrates the schema. The store
// holds users, sessions, activity logs, login attempts and settings;
// room and camera state never lands here.
func Open(filePath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(filePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", filePath, err)
	}

	if err := db.AutoMigrate(
		&UserModel{},
		&SessionModel{},
		&CameraLogModel{},
		&LoginAttemptModel{},
		&SettingModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := seedDefaultSettings(db); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	return db, nil
}

var defaultSettings = []SettingModel{
	{Key: "max_login_attempts", Value: "5", Description: "Maximum login attempts before account lockout"},
	{Key: "lockout_duration", Value: "300", Description: "Account lockout duration in seconds"},
	{Key: "session_timeout", Value: "86400", Description: "Session timeout in seconds"},
	{Key: "max_camera_sessions", Value: "10", Description: "Maximum concurrent camera sessions"},
}

func seedDefaultSettings(db *gorm.DB) error {
	for _, setting := range defaultSettings {
		result := db.Where(SettingModel{Key: setting.Key}).FirstOrCreate(&setting)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}
