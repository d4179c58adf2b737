package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open picks the driver from the DSN: "file:", "sqlite:", ":memory:" and
// *.db paths go to SQLite, everything else is treated as a MySQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	cfg := &gorm.Config{Logger: gormLogger}

	var dialector gorm.Dialector
	if isSQLite(dsn) {
		dialector = gormsqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	} else {
		dialector = mysql.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	return gdb, nil
}

// Connect is Open for binaries that cannot run without a database.
func Connect(dsn string) *gorm.DB {
	gdb, err := Open(dsn)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func isSQLite(dsn string) bool {
	d := strings.TrimSpace(dsn)
	switch {
	case d == "", d == ":memory:":
		return true
	case strings.HasPrefix(d, "file:"), strings.HasPrefix(d, "sqlite:"):
		return true
	case strings.HasSuffix(d, ".db"), strings.HasSuffix(d, ".sqlite"):
		return true
	}
	return false
}
