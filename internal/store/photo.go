package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Photo is an entry in the photo library. Position orders the library and
// matches the order the tree hangs the photos in.
type Photo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoRepository provides CRUD operations for photos.
type PhotoRepository struct {
	db *sql.DB
}

// Photos returns the photo repository for this store.
func (s *Store) Photos() *PhotoRepository {
	return &PhotoRepository{db: s.db}
}

// Create appends a photo to the end of the library. An empty ID is filled
// with a new UUID.
func (r *PhotoRepository) Create(p *Photo) error {
	if p.Path == "" {
		return errors.New("photo path is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM photos`).Scan(&p.Position); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO photos (id, path, title, position, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Path, p.Title, p.Position, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert photo %q: %w", p.Path, err)
	}

	return tx.Commit()
}

// GetByID retrieves a photo by its ID.
func (r *PhotoRepository) GetByID(id string) (*Photo, error) {
	p := &Photo{}
	err := r.db.QueryRow(
		`SELECT id, path, title, position, created_at FROM photos WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Path, &p.Title, &p.Position, &p.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves the library in display order.
func (r *PhotoRepository) List() ([]*Photo, error) {
	rows, err := r.db.Query(
		`SELECT id, path, title, position, created_at FROM photos ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p := &Photo{}
		if err := rows.Scan(&p.ID, &p.Path, &p.Title, &p.Position, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return photos, nil
}

// Paths returns the photo paths in display order.
func (r *PhotoRepository) Paths() ([]string, error) {
	photos, err := r.List()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(photos))
	for i, p := range photos {
		paths[i] = p.Path
	}
	return paths, nil
}

// Delete removes a photo and closes the gap it leaves in the ordering.
func (r *PhotoRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRow(`SELECT position FROM photos WHERE id = ?`, id).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(`DELETE FROM photos WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE photos SET position = position - 1 WHERE position > ?`, position); err != nil {
		return err
	}

	return tx.Commit()
}

// Reorder sets the display order. ids must name every photo exactly once.
func (r *PhotoRepository) Reorder(ids []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&count); err != nil {
		return err
	}
	if count != len(ids) {
		return fmt.Errorf("reorder needs all %d photos, got %d", count, len(ids))
	}

	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			return fmt.Errorf("photo %s listed twice", id)
		}
		seen[id] = true

		result, err := tx.Exec(`UPDATE photos SET position = ? WHERE id = ?`, i, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("photo %s: %w", id, ErrNotFound)
		}
	}

	return tx.Commit()
}
