package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
)

var (
	// ErrNotFound is returned when no player matches the key.
	ErrNotFound = errors.New("player not found")
	// ErrExists is returned by Create when the username is taken.
	ErrExists = errors.New("player already exists")
)

// PlayerRecord is everything stored for one player. Containers and
// progress maps are stored as JSONB.
type PlayerRecord struct {
	Username     string // display name as first registered
	PasswordHash string
	Rights       int
	X, Y         int
	Experience   int
	HitPoints    int
	Mana         int
	Inventory    []world.Slot
	Bank         []world.Slot
	Equipment    []world.Equipped
	Quests       map[string]int
	Achievements map[string]int
	Professions  map[string]int
	CreatedAt    time.Time
	LastSeen     *time.Time
}

// Key is the case-folded primary key for the record.
func (r *PlayerRecord) Key() string { return world.NormalizeName(r.Username) }

// PlayerRepo stores players in PostgreSQL keyed by folded username.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) Load(ctx context.Context, username string) (*PlayerRecord, error) {
	rec := &PlayerRecord{}
	var inv, bank, equip, quests, achievements, professions []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT display_name, password_hash, rights, x, y, experience, hit_points, mana,
		        inventory, bank, equipment, quests, achievements, professions,
		        created_at, last_seen
		 FROM players WHERE username = $1`, world.NormalizeName(username),
	).Scan(
		&rec.Username, &rec.PasswordHash, &rec.Rights, &rec.X, &rec.Y, &rec.Experience,
		&rec.HitPoints, &rec.Mana,
		&inv, &bank, &equip, &quests, &achievements, &professions,
		&rec.CreatedAt, &rec.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", username, err)
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{inv, &rec.Inventory},
		{bank, &rec.Bank},
		{equip, &rec.Equipment},
		{quests, &rec.Quests},
		{achievements, &rec.Achievements},
		{professions, &rec.Professions},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode player %s: %w", username, err)
		}
	}
	return rec, nil
}

// Save writes every mutable field and stamps last_seen.
func (r *PlayerRepo) Save(ctx context.Context, rec *PlayerRecord) error {
	blobs := make([][]byte, 0, 6)
	for _, v := range []any{rec.Inventory, rec.Bank, rec.Equipment, rec.Quests, rec.Achievements, rec.Professions} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode player %s: %w", rec.Username, err)
		}
		blobs = append(blobs, b)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET rights = $2, x = $3, y = $4, experience = $5, hit_points = $6, mana = $7,
		        inventory = $8, bank = $9, equipment = $10, quests = $11, achievements = $12,
		        professions = $13, last_seen = now()
		 WHERE username = $1`,
		rec.Key(), rec.Rights, rec.X, rec.Y, rec.Experience, rec.HitPoints, rec.Mana,
		blobs[0], blobs[1], blobs[2], blobs[3], blobs[4], blobs[5],
	)
	if err != nil {
		return fmt.Errorf("save player %s: %w", rec.Username, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether username exists and password matches its hash.
func (r *PlayerRepo) Exists(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT password_hash FROM players WHERE username = $1`, world.NormalizeName(username),
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ValidatePassword(hash, password), nil
}

// Create registers a new player with a bcrypt password hash.
func (r *PlayerRepo) Create(ctx context.Context, username, password string) (*PlayerRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	rec := &PlayerRecord{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (username, display_name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO NOTHING`,
		rec.Key(), rec.Username, rec.PasswordHash, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create player %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrExists
	}
	return rec, nil
}

func (r *PlayerRepo) Delete(ctx context.Context, username string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM players WHERE username = $1`, world.NormalizeName(username))
	return err
}

// ValidatePassword compares a raw password against a bcrypt hash.
func ValidatePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
