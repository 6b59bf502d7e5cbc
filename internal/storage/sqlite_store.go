package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

// insertBatchSize bounds the rows of one multi-row insert, keeping the bound
// parameters well below the SQLite variable limit
const insertBatchSize = 500

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore returns a store backed by the SQLite database at dbPath.
// Connections are opened on first use, the schema is created by the first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(ctx context.Context, db *sql.DB, sql string) error {
	_, err := db.ExecContext(ctx, sql)
	return err
}

func (s *SqliteStore) getWriteDB(ctx context.Context) (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(ctx, db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateRun(ctx context.Context, source string) (runID uuid.UUID, err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	id, err := uuid.NewRandom()
	if err != nil {
		err = fmt.Errorf("generating run ID: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, id, source, time.Now().UTC()); err != nil {
		err = fmt.Errorf("inserting run: %w", err)
		return
	}
	return id, nil
}

func (s *SqliteStore) Run(ctx context.Context, id uuid.UUID) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var r Run
	if err = stmt.QueryRowContext(ctx, id).Scan(&r.ID, &r.Source, &r.StartTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoData
		}
		err = fmt.Errorf("scanning run: %w", err)
		return
	}
	return &r, nil
}

func (s *SqliteStore) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r Run
		if err = rows.Scan(&r.ID, &r.Source, &r.StartTime); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		runs = append(runs, &r)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating runs: %w", err)
	}
	return
}

func (s *SqliteStore) StoreMetadata(ctx context.Context, runID uuid.UUID, m *cwa.Metadata) (err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	data := toMetadataData(runID, m)
	_, err = tx.ExecContext(
		ctx,
		insertMetadataSQL,
		data.RunID,
		data.DeviceID,
		data.SessionID,
		data.LoggingStart,
		data.LoggingEnd,
		data.LastClear,
		data.LastChange,
		data.Capacity,
		data.SamplingRate,
		data.FirmwareVersion,
	)
	if err != nil {
		return fmt.Errorf("inserting metadata: %w", err)
	}

	if _, err = tx.ExecContext(ctx, deleteAnnotationsSQL, runID); err != nil {
		return fmt.Errorf("deleting annotations: %w", err)
	}

	if len(m.Annotations) > 0 {
		values := make([]any, 0, len(m.Annotations)*5)

		var sb strings.Builder
		sb.WriteString(insertAnnotationSQL)

		for i, a := range m.Annotations {
			values = append(values, runID, i, a.Name, a.Value, toNullEpoch(a.Time))

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("inserting annotations: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) StoreBuckets(ctx context.Context, runID uuid.UUID, width time.Duration, buckets []bucket.Bucket) (err error) {
	if len(buckets) == 0 {
		return
	}

	db, err := s.getWriteDB(ctx)
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	valuesPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", bucketColumns), ", ") + ")"

	for start := 0; start < len(buckets); start += insertBatchSize {
		end := min(start+insertBatchSize, len(buckets))

		values := make([]any, 0, (end-start)*bucketColumns)

		var sb strings.Builder
		sb.WriteString(insertBucketSQL)

		for i := start; i < end; i++ {
			values = append(values, toBucketData(width, &buckets[i]).values(runID)...)

			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting buckets: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(context.Background(), s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
