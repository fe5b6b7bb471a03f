package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Sample is one image's landmarks recorded for a word.
type Sample struct {
	ID          int64              `json:"id"`
	WordID      string             `json:"word_id"`
	SampleIndex int                `json:"sample_index"`
	Landmarks   []detector.Point3D `json:"landmarks"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SampleRepository reads the samples behind each word.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

func insertSamples(tx *sql.Tx, wordID string, samples [][]detector.Point3D) error {
	stmt, err := tx.Prepare(`INSERT INTO word_samples (word_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, points := range samples {
		data, err := json.Marshal(points)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(wordID, i, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// GetByWordID retrieves all samples recorded for a word.
func (r *SampleRepository) GetByWordID(wordID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, word_id, sample_index, data, created_at
		 FROM word_samples
		 WHERE word_id = ?
		 ORDER BY sample_index`,
		wordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.WordID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &s.Landmarks); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
