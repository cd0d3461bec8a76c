package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/transcript"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error
	UpdateProjectStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateProjectVideo(ctx context.Context, id, videoPath string, duration float64, frameRate int) error

	SaveTranscript(ctx context.Context, t *transcript.Transcript) error
	GetTranscript(ctx context.Context, projectID string) (*transcript.Transcript, error)

	GetLatestEDL(ctx context.Context, projectID string) (*edl.Log, error)
	AppendEDL(ctx context.Context, projectID string, version int, ops []edl.Operation) error

	CreateExport(ctx context.Context, e *Export) error
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context, projectID string) ([]*Export, error)
	ListPendingExports(ctx context.Context) ([]*Export, error)
	UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error
	CompleteExport(ctx context.Context, id, filePath string, fileSize int64, expiresAt time.Time) error
	DeleteExpiredExports(ctx context.Context, now time.Time) ([]string, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, status, video_path, duration, frame_rate, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Status, p.VideoPath, p.Duration, p.FrameRate, nullString(p.ErrorMessage),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, video_path, duration, frame_rate, error_message, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.Status, &p.VideoPath, &p.Duration, &p.FrameRate, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ErrorMessage = errMsg.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status, video_path, duration, frame_rate, error_message, created_at, updated_at
		FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var errMsg sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.VideoPath, &p.Duration, &p.FrameRate, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.ErrorMessage = errMsg.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateProjectStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateProjectVideo(ctx context.Context, id, videoPath string, duration float64, frameRate int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET video_path = ?, duration = ?, frame_rate = ?, updated_at = ? WHERE id = ?
	`, videoPath, duration, frameRate, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) SaveTranscript(ctx context.Context, t *transcript.Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	silences, err := json.Marshal(t.Silences)
	if err != nil {
		return fmt.Errorf("marshal silences: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcripts (project_id, duration, language, segments, silences, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			duration = excluded.duration,
			language = excluded.language,
			segments = excluded.segments,
			silences = excluded.silences
	`, t.ProjectID, t.Duration, t.Language, string(segments), string(silences),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetTranscript(ctx context.Context, projectID string) (*transcript.Transcript, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT project_id, duration, language, segments, silences
		FROM transcripts WHERE project_id = ?
	`, projectID)

	var t transcript.Transcript
	var segments, silences string
	err := row.Scan(&t.ProjectID, &t.Duration, &t.Language, &segments, &silences)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	if err := json.Unmarshal([]byte(silences), &t.Silences); err != nil {
		return nil, fmt.Errorf("decode silences: %w", err)
	}
	return &t, nil
}

// GetLatestEDL returns the highest-version saved log, or nil when the
// project has no saves yet (callers treat that as version 0).
func (r *SQLiteRepository) GetLatestEDL(ctx context.Context, projectID string) (*edl.Log, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT version, operations, created_at
		FROM edls WHERE project_id = ? ORDER BY version DESC LIMIT 1
	`, projectID)

	var log edl.Log
	var operations, createdAt string
	err := row.Scan(&log.Version, &operations, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Operations, err = edl.UnmarshalOperations([]byte(operations))
	if err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	log.UpdatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &log, nil
}

// AppendEDL saves a new version under the optimistic-concurrency rule:
// the proposed version must be exactly one greater than the stored
// maximum. The check and the insert run in one transaction; the unique
// (project_id, version) constraint backstops concurrent writers.
func (r *SQLiteRepository) AppendEDL(ctx context.Context, projectID string, version int, ops []edl.Operation) error {
	operations, err := edl.MarshalOperations(ops)
	if err != nil {
		return fmt.Errorf("marshal operations: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM edls WHERE project_id = ?", projectID).Scan(&current)
	if err != nil {
		return err
	}
	if err := edl.CheckNextVersion(current, version); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edls (project_id, version, operations, created_at)
		VALUES (?, ?, ?, ?)
	`, projectID, version, string(operations), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *Export) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, project_id, format, status, file_path, file_size, error_message, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ProjectID, e.Format, e.Status, e.FilePath, e.FileSize, nullString(e.ErrorMessage),
		e.CreatedAt.Format(time.RFC3339), nullTime(e.ExpiresAt))
	return err
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*Export, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, format, status, file_path, file_size, error_message, created_at, expires_at
		FROM exports WHERE id = ?
	`, id)
	return scanExport(row.Scan)
}

func scanExport(scan func(...any) error) (*Export, error) {
	var e Export
	var errMsg, expiresAt sql.NullString
	var createdAt string

	err := scan(&e.ID, &e.ProjectID, &e.Format, &e.Status, &e.FilePath, &e.FileSize, &errMsg, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ErrorMessage = errMsg.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiresAt.Valid {
		e.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt.String)
	}
	return &e, nil
}

func (r *SQLiteRepository) ListExports(ctx context.Context, projectID string) ([]*Export, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, format, status, file_path, file_size, error_message, created_at, expires_at
		FROM exports WHERE project_id = ? ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExports(rows)
}

func (r *SQLiteRepository) ListPendingExports(ctx context.Context) ([]*Export, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, format, status, file_path, file_size, error_message, created_at, expires_at
		FROM exports WHERE status = ? ORDER BY created_at
	`, ExportStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExports(rows)
}

func collectExports(rows *sql.Rows) ([]*Export, error) {
	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows.Scan)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, error_message = ? WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) CompleteExport(ctx context.Context, id, filePath string, fileSize int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, file_path = ?, file_size = ?, expires_at = ? WHERE id = ?
	`, ExportStatusCompleted, filePath, fileSize, expiresAt.Format(time.RFC3339), id)
	return err
}

// DeleteExpiredExports removes export records whose TTL elapsed and
// returns the file paths of the removed artifacts so the caller can
// unlink them.
func (r *SQLiteRepository) DeleteExpiredExports(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.UTC().Format(time.RFC3339)
	rows, err := r.db.QueryContext(ctx, `
		SELECT file_path FROM exports WHERE expires_at IS NOT NULL AND expires_at < ? AND file_path != ''
	`, cutoff)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		"DELETE FROM exports WHERE expires_at IS NOT NULL AND expires_at < ?", cutoff)
	return paths, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}
