package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/detector"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Word is a registered reference shape.
type Word struct {
	ID        string
	Name      string
	Samples   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WordRepository stores words with their landmarks.
type WordRepository struct {
	db *sql.DB
}

// Words returns the word repository for this store.
func (s *Store) Words() *WordRepository {
	return &WordRepository{db: s.db}
}

// Save inserts or replaces the word named w.Name in one transaction.
// A replaced word keeps its id and creation time, so listing order is stable.
// image may be nil. samples are the per-image landmarks behind landmarks.
func (r *WordRepository) Save(w *Word, landmarks []detector.Point3D, image []byte, samples [][]detector.Point3D) error {
	if len(landmarks) == 0 {
		return fmt.Errorf("save word %q: no landmarks", w.Name)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if len(samples) == 0 {
		samples = [][]detector.Point3D{landmarks}
	}
	w.Samples = len(samples)
	w.UpdatedAt = now

	var id string
	var created time.Time
	err = tx.QueryRow(`SELECT id, created_at FROM words WHERE name = ?`, w.Name).Scan(&id, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		w.ID = uuid.New().String()
		w.CreatedAt = now
		_, err = tx.Exec(
			`INSERT INTO words (id, name, samples, image, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			w.ID, w.Name, w.Samples, image, w.CreatedAt, w.UpdatedAt,
		)
	case err == nil:
		w.ID = id
		w.CreatedAt = created
		_, err = tx.Exec(
			`UPDATE words SET samples = ?, image = ?, updated_at = ? WHERE id = ?`,
			w.Samples, image, w.UpdatedAt, w.ID,
		)
		if err == nil {
			_, err = tx.Exec(`DELETE FROM word_landmarks WHERE word_id = ?`, w.ID)
		}
		if err == nil {
			_, err = tx.Exec(`DELETE FROM word_samples WHERE word_id = ?`, w.ID)
		}
	}
	if err != nil {
		return err
	}

	if err := insertLandmarks(tx, w.ID, landmarks); err != nil {
		return err
	}
	if err := insertSamples(tx, w.ID, samples); err != nil {
		return err
	}

	return tx.Commit()
}

func insertLandmarks(tx *sql.Tx, wordID string, landmarks []detector.Point3D) error {
	stmt, err := tx.Prepare(`INSERT INTO word_landmarks (word_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range landmarks {
		if _, err := stmt.Exec(wordID, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return nil
}

// GetByName retrieves a word by its name.
func (r *WordRepository) GetByName(name string) (*Word, error) {
	w := &Word{}
	err := r.db.QueryRow(
		`SELECT id, name, samples, created_at, updated_at FROM words WHERE name = ?`,
		name,
	).Scan(&w.ID, &w.Name, &w.Samples, &w.CreatedAt, &w.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

// List returns every word in registration order.
func (r *WordRepository) List() ([]*Word, error) {
	rows, err := r.db.Query(
		`SELECT id, name, samples, created_at, updated_at
		 FROM words ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []*Word
	for rows.Next() {
		w := &Word{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Samples, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		words = append(words, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

// Landmarks returns the reference landmarks of a word in joint order.
func (r *WordRepository) Landmarks(wordID string) ([]detector.Point3D, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z FROM word_landmarks WHERE word_id = ? ORDER BY landmark_index`,
		wordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []detector.Point3D
	for rows.Next() {
		var p detector.Point3D
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}

	return points, nil
}

// Image returns the source image stored with a word, which may be empty.
func (r *WordRepository) Image(name string) ([]byte, error) {
	var image []byte
	err := r.db.QueryRow(`SELECT image FROM words WHERE name = ?`, name).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return image, nil
}

// Delete removes a word and its landmarks by name.
func (r *WordRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM words WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
