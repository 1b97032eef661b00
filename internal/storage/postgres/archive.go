package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/atre/internal/encounter"
)

// ErrEncounterNotFound is returned when an encounter lookup yields no results.
var ErrEncounterNotFound = errors.New("encounter not found")

// ErrEncounterExists is returned when creating an encounter with an ID already archived.
var ErrEncounterExists = errors.New("encounter already archived")

// EncounterSummary is the archived header row for one resolved encounter.
type EncounterSummary struct {
	ID        string
	Round     int
	Winner    string
	Ended     bool
	CreatedAt time.Time
	EndedAt   *time.Time
}

// ArchiveRepository persists TurnRecords and encounter outcomes for
// after-the-fact review. Archiving is optional: the Transaction Manager
// and Turn Pipeline Controller never depend on it being present, and a
// failed archive write never rolls back a committed turn.
type ArchiveRepository struct {
	db *pgxpool.Pool
}

// NewArchiveRepository creates an ArchiveRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewArchiveRepository(db *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// BeginEncounter inserts the header row for a new encounter.
//
// Precondition: encounterID must be non-empty and not already archived.
// Postcondition: Returns ErrEncounterExists on a duplicate ID.
func (r *ArchiveRepository) BeginEncounter(ctx context.Context, encounterID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO encounters (id, round, winner, ended) VALUES ($1, 1, '', false)`,
		encounterID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrEncounterExists
		}
		return fmt.Errorf("inserting encounter: %w", err)
	}
	return nil
}

// AppendTurnRecord archives one TurnRecord produced by the Transaction
// Manager, committed or rolled back. The Mechanical and Intent fields are
// stored as JSONB since their shape varies by action type and source tier.
//
// Precondition: encounterID must reference a row inserted by BeginEncounter.
func (r *ArchiveRepository) AppendTurnRecord(ctx context.Context, encounterID string, rec encounter.TurnRecord) error {
	intentJSON, err := json.Marshal(rec.Intent)
	if err != nil {
		return fmt.Errorf("marshalling intent: %w", err)
	}
	mechJSON, err := json.Marshal(rec.Mechanical)
	if err != nil {
		return fmt.Errorf("marshalling mechanical result: %w", err)
	}
	diceJSON, err := json.Marshal(rec.DiceRolls)
	if err != nil {
		return fmt.Errorf("marshalling dice rolls: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO turn_records
			(id, encounter_id, round, combatant_id, intent, dice_rolls, mechanical,
			 narrative, source_tier, rolled_back, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, encounterID, rec.Round, rec.CombatantID, intentJSON, diceJSON, mechJSON,
		rec.Narrative, string(rec.SourceTier), rec.RolledBack, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("inserting turn record: %w", err)
	}

	_, err = r.db.Exec(ctx, `UPDATE encounters SET round = $2 WHERE id = $1`, encounterID, rec.Round)
	if err != nil {
		return fmt.Errorf("updating encounter round: %w", err)
	}
	return nil
}

// EndEncounter marks the encounter as resolved with its winning side.
func (r *ArchiveRepository) EndEncounter(ctx context.Context, encounterID, winner string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE encounters SET winner = $2, ended = true, ended_at = NOW() WHERE id = $1`,
		encounterID, winner,
	)
	if err != nil {
		return fmt.Errorf("ending encounter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEncounterNotFound
	}
	return nil
}

// GetEncounter retrieves the archived header row for one encounter.
func (r *ArchiveRepository) GetEncounter(ctx context.Context, encounterID string) (EncounterSummary, error) {
	var s EncounterSummary
	err := r.db.QueryRow(ctx,
		`SELECT id, round, winner, ended, created_at, ended_at FROM encounters WHERE id = $1`,
		encounterID,
	).Scan(&s.ID, &s.Round, &s.Winner, &s.Ended, &s.CreatedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EncounterSummary{}, ErrEncounterNotFound
		}
		return EncounterSummary{}, fmt.Errorf("querying encounter: %w", err)
	}
	return s, nil
}

// ListTurnRecords returns every archived TurnRecord for an encounter, in
// the order they were appended, replaying spec §8's round-trip log.
func (r *ArchiveRepository) ListTurnRecords(ctx context.Context, encounterID string) ([]encounter.TurnRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, round, combatant_id, intent, dice_rolls, mechanical,
		       narrative, source_tier, rolled_back, reason
		FROM turn_records WHERE encounter_id = $1 ORDER BY created_at ASC`,
		encounterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turn records: %w", err)
	}
	defer rows.Close()

	recs := make([]encounter.TurnRecord, 0)
	for rows.Next() {
		var rec encounter.TurnRecord
		var intentJSON, diceJSON, mechJSON []byte
		var tier string
		if err := rows.Scan(
			&rec.ID, &rec.Round, &rec.CombatantID, &intentJSON, &diceJSON, &mechJSON,
			&rec.Narrative, &tier, &rec.RolledBack, &rec.Reason,
		); err != nil {
			return nil, fmt.Errorf("scanning turn record row: %w", err)
		}
		if err := json.Unmarshal(intentJSON, &rec.Intent); err != nil {
			return nil, fmt.Errorf("unmarshalling intent: %w", err)
		}
		if err := json.Unmarshal(diceJSON, &rec.DiceRolls); err != nil {
			return nil, fmt.Errorf("unmarshalling dice rolls: %w", err)
		}
		if err := json.Unmarshal(mechJSON, &rec.Mechanical); err != nil {
			return nil, fmt.Errorf("unmarshalling mechanical result: %w", err)
		}
		rec.SourceTier = encounter.SourceTier(tier)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
