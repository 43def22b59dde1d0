// Package history archives finished games. It is write-mostly: sessions are
// never restored from it.
package history

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Standing struct {
	Place     int
	Slot      int
	Name      string
	Coins     int
	Stars     int
	Simulated bool
}

type Record struct {
	RoomCode   string
	Mode       string
	Rounds     int
	FinishedAt time.Time
	Standings  []Standing
}

// FromState builds the archive record for a finished session.
func FromState(code string, s engine.State, at time.Time) Record {
	r := Record{
		RoomCode:   code,
		Mode:       string(s.Mode),
		Rounds:     s.RoundLimit,
		FinishedAt: at,
	}
	for i, p := range engine.Standings(s) {
		r.Standings = append(r.Standings, Standing{
			Place:     i + 1,
			Slot:      p.Slot,
			Name:      p.Name,
			Coins:     p.Coins,
			Stars:     p.Stars,
			Simulated: p.Simulated,
		})
	}
	return r
}

type Recorder interface {
	Record(ctx context.Context, r Record) error
}

type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }

// MemoryRecorder keeps records in process. Used when no database is set.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *MemoryRecorder) Record(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *MemoryRecorder) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Recent returns up to limit records, newest first.
func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.records)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type gameRow struct {
	ID         uint   `gorm:"primaryKey"`
	RoomCode   string `gorm:"index;not null"`
	Mode       string `gorm:"not null"`
	Rounds     int
	FinishedAt time.Time     `gorm:"index"`
	Standings  []standingRow `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (gameRow) TableName() string { return "games" }

type standingRow struct {
	ID        uint `gorm:"primaryKey"`
	GameID    uint `gorm:"index;not null"`
	Place     int  `gorm:"not null"`
	Slot      int
	Name      string `gorm:"not null"`
	Coins     int
	Stars     int
	Simulated bool
}

func (standingRow) TableName() string { return "game_standings" }

// GormRecorder stores records in Postgres.
type GormRecorder struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the archive tables.
func Open(dsn string) (*GormRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return NewGormRecorder(db)
}

func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&gameRow{}, &standingRow{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &GormRecorder{db: db}, nil
}

func (g *GormRecorder) Record(ctx context.Context, r Record) error {
	row := gameRow{
		RoomCode:   r.RoomCode,
		Mode:       r.Mode,
		Rounds:     r.Rounds,
		FinishedAt: r.FinishedAt,
	}
	for _, s := range r.Standings {
		row.Standings = append(row.Standings, standingRow{
			Place:     s.Place,
			Slot:      s.Slot,
			Name:      s.Name,
			Coins:     s.Coins,
			Stars:     s.Stars,
			Simulated: s.Simulated,
		})
	}
	return g.db.WithContext(ctx).Create(&row).Error
}

// Recent returns the latest finished games, newest first.
func (g *GormRecorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	var rows []gameRow
	err := g.db.WithContext(ctx).
		Preload("Standings", func(db *gorm.DB) *gorm.DB { return db.Order("place") }).
		Order("finished_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r := Record{RoomCode: row.RoomCode, Mode: row.Mode, Rounds: row.Rounds, FinishedAt: row.FinishedAt}
		for _, s := range row.Standings {
			r.Standings = append(r.Standings, Standing{
				Place:     s.Place,
				Slot:      s.Slot,
				Name:      s.Name,
				Coins:     s.Coins,
				Stars:     s.Stars,
				Simulated: s.Simulated,
			})
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *GormRecorder) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
