package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestConnectWithRetryRecoversFromTransientFailures(t *testing.T) {
	attempts := 0
	open := func() (*gorm.DB, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	db, err := connectWithRetry(open, 5, time.Millisecond)
	if err != nil {
		t.Fatalf("expected the connect to recover: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected success on the third attempt, got %d attempts", attempts)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	_ = sqlDB.Close()
}

func TestConnectWithRetryGivesUpAfterBudget(t *testing.T) {
	attempts := 0
	open := func() (*gorm.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	_, err := connectWithRetry(open, 3, time.Millisecond)
	if err == nil {
		t.Fatalf("expected an error once the budget is spent")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected the attempt count in the error, got %q", err)
	}
}
