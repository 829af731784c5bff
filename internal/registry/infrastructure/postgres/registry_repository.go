package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	registry "powerplant-cloud/internal/registry/domain"
)

const pgUniqueViolation = "23505"

// RegistryRepository is a Postgres implementation of the plant/machine
// registry.
type RegistryRepository struct {
	db *sql.DB
}

// NewRegistryRepository constructs a repository.
func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// Create stores a plant, translating the unique-name violation.
func (r *RegistryRepository) Create(ctx context.Context, plant *registry.Plant) error {
	if r == nil || r.db == nil {
		return errors.New("registry repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO plants (id, name, type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)`,
		plant.ID, plant.Name, string(plant.Type), plant.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return registry.ErrPlantNameTaken
		}
		return err
	}
	return nil
}

// Get loads a plant by id.
func (r *RegistryRepository) Get(ctx context.Context, id string) (*registry.Plant, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, type, created_at, updated_at
FROM plants
WHERE id = $1
LIMIT 1`, id)

	plant, err := scanPlant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrPlantNotFound
	}
	if err != nil {
		return nil, err
	}
	return plant, nil
}

// List returns all plants, newest first.
func (r *RegistryRepository) List(ctx context.Context) ([]*registry.Plant, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, type, created_at, updated_at
FROM plants
ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*registry.Plant
	for rows.Next() {
		plant, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies an optional-field update.
func (r *RegistryRepository) Update(ctx context.Context, id string, update registry.PlantUpdate) (*registry.Plant, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE plants
SET name = COALESCE($2, name),
	type = COALESCE($3, type),
	updated_at = NOW()
WHERE id = $1
RETURNING id, name, type, created_at, updated_at`,
		id, nullString(update.Name), nullPlantType(update.Type))

	plant, err := scanPlant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrPlantNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, registry.ErrPlantNameTaken
		}
		return nil, err
	}
	return plant, nil
}

// CreateMachine stores a machine.
func (r *RegistryRepository) CreateMachine(ctx context.Context, machine *registry.Machine) error {
	if r == nil || r.db == nil {
		return errors.New("registry repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO machines (id, identifier, plant_id, created_at)
VALUES ($1, $2, $3, $4)`,
		machine.ID, machine.Identifier, machine.PlantID, machine.CreatedAt.UTC())
	return err
}

const machineColumns = `
	m.id, m.identifier, m.plant_id, m.created_at, p.name, p.type`

// GetMachine loads a machine with its owning plant context.
func (r *RegistryRepository) GetMachine(ctx context.Context, id string) (*registry.MachineWithPlant, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT`+machineColumns+`
FROM machines m
JOIN plants p ON p.id = m.plant_id
WHERE m.id = $1
LIMIT 1`, id)

	machine, err := scanMachine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrMachineNotFound
	}
	if err != nil {
		return nil, err
	}
	return machine, nil
}

// ListMachines returns machines ordered by plant name then identifier,
// optionally filtered by plant.
func (r *RegistryRepository) ListMachines(ctx context.Context, plantID string) ([]*registry.MachineWithPlant, error) {
	query := `
SELECT` + machineColumns + `
FROM machines m
JOIN plants p ON p.id = m.plant_id`
	var args []any
	if plantID != "" {
		query += `
WHERE m.plant_id = $1`
		args = append(args, plantID)
	}
	query += `
ORDER BY p.name ASC, m.identifier ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*registry.MachineWithPlant
	for rows.Next() {
		machine, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, machine)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteMachine removes a machine.
func (r *RegistryRepository) DeleteMachine(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM machines WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return registry.ErrMachineNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (*registry.Plant, error) {
	var plant registry.Plant
	var plantType string
	if err := row.Scan(&plant.ID, &plant.Name, &plantType, &plant.CreatedAt, &plant.UpdatedAt); err != nil {
		return nil, err
	}
	plant.Type = registry.PlantType(plantType)
	plant.CreatedAt = plant.CreatedAt.UTC()
	plant.UpdatedAt = plant.UpdatedAt.UTC()
	return &plant, nil
}

func scanMachine(row rowScanner) (*registry.MachineWithPlant, error) {
	var machine registry.MachineWithPlant
	var plantType string
	if err := row.Scan(
		&machine.ID,
		&machine.Identifier,
		&machine.PlantID,
		&machine.CreatedAt,
		&machine.PlantName,
		&plantType,
	); err != nil {
		return nil, err
	}
	machine.PlantType = registry.PlantType(plantType)
	machine.CreatedAt = machine.CreatedAt.UTC()
	return &machine, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullPlantType(value *registry.PlantType) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*value), Valid: true}
}
