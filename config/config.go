package config

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitDB opens the database named by DB_DRIVER. MySQL is the production
// driver; sqlite is kept for local runs without a server.
func InitDB() (*gorm.DB, error) {
	switch envOr("DB_DRIVER", "mysql") {
	case "sqlite":
		return gorm.Open(sqlite.Open(envOr("DB_PATH", "scms.db")), &gorm.Config{})
	default:
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			envOr("DB_USER", "root"),
			os.Getenv("DB_PASS"),
			envOr("DB_HOST", "127.0.0.1"),
			envOr("DB_PORT", "3306"),
			envOr("DB_NAME", "scms"),
		)
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	}
}
