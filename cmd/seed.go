package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/eventcat/eventcat/internal/config"
	"github.com/eventcat/eventcat/internal/db"
	"github.com/eventcat/eventcat/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo venues and events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo catalog...")

		if err := seedCatalog(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedCatalog inserts deterministic demo venues and events (idempotent).
func seedCatalog(dbx *sqlx.DB) error {
	venues := []model.Venue{
		{ID: "6f1f64e5-0001-4a7e-9e4e-aaaaaaaaaaaa", Name: "Main Hall"},
		{ID: "6f1f64e5-0002-4a7e-9e4e-bbbbbbbbbbbb", Name: "Riverside Pavilion"},
		{ID: "6f1f64e5-0003-4a7e-9e4e-cccccccccccc", Name: "Tech Park Auditorium"},
	}

	type seedEvent struct {
		id      string
		name    string
		inDays  int
		status  model.EventStatus
		venueID string
	}
	events := []seedEvent{
		{"4d2c91b7-0001-4f0a-8c11-aaaaaaaaaaaa", "Go Meetup", 7, model.EventStatusOpen, venues[2].ID},
		{"4d2c91b7-0002-4f0a-8c11-bbbbbbbbbbbb", "Jazz Evening", 14, model.EventStatusOpen, venues[0].ID},
		{"4d2c91b7-0003-4f0a-8c11-cccccccccccc", "City Marathon Briefing", 21, model.EventStatusOpen, venues[1].ID},
		{"4d2c91b7-0004-4f0a-8c11-dddddddddddd", "Winter Gala", -30, model.EventStatusClosed, venues[0].ID},
	}

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const vq = `
INSERT INTO venues (id, name)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE name = VALUES(name)
`
	for _, v := range venues {
		if _, err := tx.Exec(vq, v.ID, v.Name); err != nil {
			return fmt.Errorf("insert venue %q: %w", v.Name, err)
		}
	}

	const eq = `
INSERT INTO events (id, name, event_time, status, venue_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    event_time = VALUES(event_time),
    status     = VALUES(status),
    venue_id   = VALUES(venue_id),
    updated_at = VALUES(updated_at)
`
	now := time.Now()
	for _, e := range events {
		eventTime := now.AddDate(0, 0, e.inDays)
		if _, err := tx.Exec(eq, e.id, e.name, eventTime, e.status, e.venueID, now, now); err != nil {
			return fmt.Errorf("insert event %q: %w", e.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
