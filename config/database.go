package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

var DB *gorm.DB

func InitDB() {
	var err error

	dialector, err := dialectorFromEnv()
	if err != nil {
		log.Fatal("Invalid database configuration:", err)
	}

	// Configure GORM
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if environment == "production" && debugSQL != "true" {
		logLevel = logger.Warn
	}

	config := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
	}

	DB, err = gorm.Open(dialector, config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Printf("Database connected successfully (%s)", dialector.Name())
}

func dialectorFromEnv() (gorm.Dialector, error) {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbDatabase := os.Getenv("DB_DATABASE")
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")

	switch driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_CONNECTION"))); driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbUsername,
			dbPassword,
			dbHost,
			dbPort,
			dbDatabase,
		)
		return mysql.Open(dsn), nil
	case "postgres", "pgsql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			dbHost,
			dbUsername,
			dbPassword,
			dbDatabase,
			dbPort,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "ethesis.db"
		}
		return SQLiteDialector(path), nil
	default:
		return nil, fmt.Errorf("unsupported DB_CONNECTION %q", driver)
	}
}

// SQLiteDialector opens path through the pure Go modernc driver.
func SQLiteDialector(path string) gorm.Dialector {
	return sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}
}

// OpenSQLite opens a standalone SQLite database with GORM's default logger.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(SQLiteDialector(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
