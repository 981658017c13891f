//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/models"
)

// mysqlConfig reads connection settings for a disposable MySQL server from
// TRACKER_TEST_MYSQL_{HOST,PORT,USER,PASSWORD}.
func mysqlConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("TRACKER_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("TRACKER_TEST_MYSQL_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TRACKER_TEST_MYSQL_PORT"))
	if port == 0 {
		port = 3306
	}
	return config.DatabaseConfig{
		Driver:   "mysql",
		Host:     host,
		Port:     port,
		User:     os.Getenv("TRACKER_TEST_MYSQL_USER"),
		Password: os.Getenv("TRACKER_TEST_MYSQL_PASSWORD"),
		Name:     "tracker_integration",
	}
}

func TestMySQL_CreateMigrateRoundTrip(t *testing.T) {
	cfg := mysqlConfig(t)
	if err := CreateDatabase(cfg); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer Close(db)
	t.Cleanup(func() { db.Exec("DROP DATABASE IF EXISTS `tracker_integration`") })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	p := models.Project{ID: "p1", Key: "INT", Name: "Integration"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	var got models.Project
	if err := db.First(&got, "id = ?", "p1").Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	if got.Key != "INT" {
		t.Errorf("Key = %q, want INT", got.Key)
	}
}
