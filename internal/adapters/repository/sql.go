package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	_ "modernc.org/sqlite"
)

// SQLStore implements Store on SQLite, PostgreSQL or MySQL.
type SQLStore struct {
	db      *sql.DB
	backend Backend
	opts    options
	log     logger.Logger
}

var _ Store = (*SQLStore)(nil)

// OpenSQL migrates the schema behind dsn, connects and returns the store.
func OpenSQL(ctx context.Context, backend Backend, dsn string, opts ...Option) (*SQLStore, error) {
	version, err := Migrate(backend, dsn)
	if err != nil {
		return nil, err
	}
	db, err := openDB(backend, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", backend, err)
	}
	log := logger.Get().Named("repository")
	log.Info(ctx, "database ready",
		logger.String("backend", string(backend)),
		logger.Int64("schema_version", int64(version)))
	return &SQLStore{db: db, backend: backend, opts: buildOptions(opts), log: log}, nil
}

func openDB(backend Backend, dsn string) (*sql.DB, error) {
	switch backend {
	case BackendSQLite:
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database %q: %w", dsn, err)
		}
		// One connection avoids "database is locked" under concurrent writers.
		db.SetMaxOpenConns(1)
		return db, nil
	case BackendPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
		return db, nil
	case BackendMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn (user:password@tcp(host:port)/dbname): %w", err)
		}
		// Migration files hold several statements each.
		cfg.MultiStatements = true
		cfg.ClientFoundRows = true
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
		return sql.OpenDB(connector), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

// sqliteDSN turns on foreign keys unless the caller set pragmas explicitly.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.backend != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, q sqlExecer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnsureAppConfig implements Store.
func (s *SQLStore) EnsureAppConfig(ctx context.Context) (model.AppConfig, error) {
	raw, err := s.readConfig(ctx)
	switch {
	case err == nil:
		cfg, perr := model.ParseAppConfig(raw)
		if perr == nil {
			return cfg, nil
		}
		s.log.Warn(ctx, "stored app config is invalid, restoring defaults", logger.Error(perr))
	case !errors.Is(err, ErrNotFound):
		return model.AppConfig{}, err
	}
	def := model.DefaultAppConfig()
	if err := s.writeConfig(ctx, def); err != nil {
		return model.AppConfig{}, err
	}
	return def, nil
}

// UpdateAppConfig implements Store.
func (s *SQLStore) UpdateAppConfig(ctx context.Context, cfg model.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.writeConfig(ctx, cfg)
}

// RawAppConfig implements Store.
func (s *SQLStore) RawAppConfig(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.readConfig(ctx)
	if errors.Is(err, ErrNotFound) {
		return json.Marshal(model.DefaultAppConfig())
	}
	return raw, err
}

func (s *SQLStore) readConfig(ctx context.Context) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT config_json FROM app_config WHERE id = ?`), model.AppConfigID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("app config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read app config: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (s *SQLStore) writeConfig(ctx context.Context, cfg model.AppConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	query := `INSERT INTO app_config (id, config_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`
	if s.backend == BackendMySQL {
		query = `INSERT INTO app_config (id, config_json, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE config_json = VALUES(config_json), updated_at = VALUES(updated_at)`
	}
	if _, err := s.exec(ctx, s.db, query, model.AppConfigID, string(raw), s.opts.now().UnixNano()); err != nil {
		return fmt.Errorf("write app config: %w", err)
	}
	return nil
}

// CreateJobRun implements Store.
func (s *SQLStore) CreateJobRun(ctx context.Context, run model.JobRun) (model.JobRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.opts.now()
	}
	run.Status = model.JobRunning
	if len(run.Metadata) == 0 {
		run.Metadata = json.RawMessage("{}")
	}
	var mode any
	if run.Mode != nil {
		mode = string(*run.Mode)
	}
	_, err := s.exec(ctx, s.db,
		`INSERT INTO job_runs (id, mode, status, trigger_source, started_at, metadata_json) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, mode, string(run.Status), string(run.Trigger), run.StartedAt.UnixNano(), string(run.Metadata))
	if err != nil {
		return model.JobRun{}, fmt.Errorf("create job run: %w", err)
	}
	return run, nil
}

// FinishJobRun implements Store.
func (s *SQLStore) FinishJobRun(ctx context.Context, id string, u model.JobRunUpdate) error {
	var items, msg any
	if u.ItemsUpdated != nil {
		items = *u.ItemsUpdated
	}
	if u.ErrorMessage != nil {
		msg = *u.ErrorMessage
	}
	res, err := s.exec(ctx, s.db,
		`UPDATE job_runs SET status = ?, finished_at = ?, duration_ms = ?, items_updated = ?, error_message = ? WHERE id = ?`,
		string(u.Status), u.FinishedAt.UnixNano(), u.DurationMS, items, msg, id)
	if err != nil {
		return fmt.Errorf("finish job run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListJobRuns implements Store.
func (s *SQLStore) ListJobRuns(ctx context.Context, limit int) ([]model.JobRun, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, mode, status, trigger_source, started_at, finished_at,
		duration_ms, items_updated, error_message, metadata_json
		FROM job_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.JobRun
	for rows.Next() {
		var (
			r                     model.JobRun
			mode, errMsg          sql.NullString
			finished, dur, items  sql.NullInt64
			status, trigger, meta string
			started               int64
		)
		if err := rows.Scan(&r.ID, &mode, &status, &trigger, &started, &finished, &dur, &items, &errMsg, &meta); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		r.Status = model.JobStatus(status)
		r.Trigger = model.Trigger(trigger)
		r.StartedAt = fromNanos(started)
		r.Metadata = json.RawMessage(meta)
		if mode.Valid {
			m := model.Mode(mode.String)
			r.Mode = &m
		}
		if finished.Valid {
			t := fromNanos(finished.Int64)
			r.FinishedAt = &t
		}
		if dur.Valid {
			r.DurationMS = &dur.Int64
		}
		if items.Valid {
			n := int(items.Int64)
			r.ItemsUpdated = &n
		}
		if errMsg.Valid {
			r.ErrorMessage = &errMsg.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PreviousRanks implements Store.
func (s *SQLStore) PreviousRanks(ctx context.Context, mode model.Mode) (map[string]int, error) {
	ranks := make(map[string]int)
	snap, err := s.latestSnapshot(ctx, mode)
	if errors.Is(err, ErrNotFound) {
		return ranks, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT role, class_name, spec_name, spec_rank FROM spec_scores WHERE snapshot_id = ?`), snap.ID)
	if err != nil {
		return nil, fmt.Errorf("previous ranks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			role, className, specName string
			rank                      int
		)
		if err := rows.Scan(&role, &className, &specName, &rank); err != nil {
			return nil, fmt.Errorf("scan previous rank: %w", err)
		}
		ranks[model.SpecKey(model.Role(role), className, specName)] = rank
	}
	return ranks, rows.Err()
}

// SaveSnapshot implements Store.
func (s *SQLStore) SaveSnapshot(ctx context.Context, w model.SnapshotWrite) (err error) {
	meta, err := json.Marshal(w.Snapshot.Metadata)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snap := w.Snapshot
	if _, err = s.exec(ctx, tx, `INSERT INTO snapshots (id, mode, created_at, metadata_json) VALUES (?, ?, ?, ?)`,
		snap.ID, string(snap.Mode), snap.CreatedAt.UnixNano(), string(meta)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, sc := range w.Scores {
		var prev any
		if sc.PreviousRank != nil {
			prev = *sc.PreviousRank
		}
		if _, err = s.exec(ctx, tx, `INSERT INTO spec_scores (id, snapshot_id, mode, role, class_name, spec_name,
			score, tier, sample_size, spec_rank, previous_rank, raw_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, snap.ID, string(sc.Mode), string(sc.Role), sc.ClassName, sc.SpecName,
			sc.Score, string(sc.Tier), sc.SampleSize, sc.Rank, prev, jsonText(sc.RawJSON)); err != nil {
			return fmt.Errorf("insert spec score %s: %w", sc.Key(), err)
		}
	}
	for _, b := range w.Builds {
		var imp any
		if b.BuildImportString != nil {
			imp = *b.BuildImportString
		}
		if _, err = s.exec(ctx, tx, `INSERT INTO spec_builds (id, snapshot_id, mode, role, class_name, spec_name,
			build_json, build_source, build_import_string) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, snap.ID, string(b.Mode), string(b.Role), b.ClassName, b.SpecName,
			jsonText(b.BuildJSON), b.BuildSource, imp); err != nil {
			return fmt.Errorf("insert spec build: %w", err)
		}
	}
	for _, st := range w.Stats {
		if _, err = s.exec(ctx, tx, `INSERT INTO spec_stats (id, snapshot_id, mode, role, class_name, spec_name,
			stats_json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, snap.ID, string(st.Mode), string(st.Role), st.ClassName, st.SpecName, jsonText(st.StatsJSON)); err != nil {
			return fmt.Errorf("insert spec stats: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshotView implements Store.
func (s *SQLStore) LatestSnapshotView(ctx context.Context, mode model.Mode) (model.SnapshotView, error) {
	snap, err := s.latestSnapshot(ctx, mode)
	if err != nil {
		return model.SnapshotView{}, err
	}
	return s.view(ctx, snap)
}

// SnapshotView implements Store.
func (s *SQLStore) SnapshotView(ctx context.Context, id string) (model.SnapshotView, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, mode, created_at, metadata_json FROM snapshots WHERE id = ?`), id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SnapshotView{}, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.SnapshotView{}, err
	}
	return s.view(ctx, snap)
}

// ListSnapshots implements Store.
func (s *SQLStore) ListSnapshots(ctx context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	query := `SELECT id, mode, created_at, metadata_json FROM snapshots`
	args := []any{}
	if mode != nil {
		query += ` WHERE mode = ?`
		args = append(args, string(*mode))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CountSnapshots implements Store.
func (s *SQLStore) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) latestSnapshot(ctx context.Context, mode model.Mode) (model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, mode, created_at, metadata_json FROM snapshots
		WHERE mode = ? ORDER BY created_at DESC LIMIT 1`), string(mode))
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, fmt.Errorf("snapshot for %s: %w", mode, ErrNotFound)
	}
	return snap, err
}

func (s *SQLStore) view(ctx context.Context, snap model.Snapshot) (model.SnapshotView, error) {
	scores, err := s.scores(ctx, snap.ID)
	if err != nil {
		return model.SnapshotView{}, err
	}
	builds, err := s.builds(ctx, snap.ID)
	if err != nil {
		return model.SnapshotView{}, err
	}
	stats, err := s.stats(ctx, snap.ID)
	if err != nil {
		return model.SnapshotView{}, err
	}
	return buildView(snap, scores, builds, stats), nil
}

func (s *SQLStore) scores(ctx context.Context, snapshotID string) ([]model.SpecScore, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, snapshot_id, mode, role, class_name, spec_name,
		score, tier, sample_size, spec_rank, previous_rank, raw_json
		FROM spec_scores WHERE snapshot_id = ? ORDER BY role, spec_rank`), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load spec scores: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.SpecScore
	for rows.Next() {
		var (
			sc                    model.SpecScore
			mode, role, tier, raw string
			prev                  sql.NullInt64
		)
		if err := rows.Scan(&sc.ID, &sc.SnapshotID, &mode, &role, &sc.ClassName, &sc.SpecName,
			&sc.Score, &tier, &sc.SampleSize, &sc.Rank, &prev, &raw); err != nil {
			return nil, fmt.Errorf("scan spec score: %w", err)
		}
		sc.Mode, sc.Role, sc.Tier = model.Mode(mode), model.Role(role), model.Tier(tier)
		sc.RawJSON = json.RawMessage(raw)
		if prev.Valid {
			p := int(prev.Int64)
			sc.PreviousRank = &p
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) builds(ctx context.Context, snapshotID string) ([]model.SpecBuild, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, snapshot_id, mode, role, class_name, spec_name,
		build_json, build_source, build_import_string FROM spec_builds WHERE snapshot_id = ?`), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load spec builds: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.SpecBuild
	for rows.Next() {
		var (
			b               model.SpecBuild
			mode, role, raw string
			imp             sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.SnapshotID, &mode, &role, &b.ClassName, &b.SpecName,
			&raw, &b.BuildSource, &imp); err != nil {
			return nil, fmt.Errorf("scan spec build: %w", err)
		}
		b.Mode, b.Role = model.Mode(mode), model.Role(role)
		b.BuildJSON = json.RawMessage(raw)
		if imp.Valid {
			b.BuildImportString = &imp.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) stats(ctx context.Context, snapshotID string) ([]model.SpecStats, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, snapshot_id, mode, role, class_name, spec_name,
		stats_json FROM spec_stats WHERE snapshot_id = ?`), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load spec stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.SpecStats
	for rows.Next() {
		var (
			st              model.SpecStats
			mode, role, raw string
		)
		if err := rows.Scan(&st.ID, &st.SnapshotID, &mode, &role, &st.ClassName, &st.SpecName, &raw); err != nil {
			return nil, fmt.Errorf("scan spec stats: %w", err)
		}
		st.Mode, st.Role = model.Mode(mode), model.Role(role)
		st.StatsJSON = json.RawMessage(raw)
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var (
		snap       model.Snapshot
		mode, meta string
		created    int64
	)
	if err := row.Scan(&snap.ID, &mode, &created, &meta); err != nil {
		return model.Snapshot{}, err
	}
	snap.Mode = model.Mode(mode)
	snap.CreatedAt = fromNanos(created)
	if err := json.Unmarshal([]byte(meta), &snap.Metadata); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot %s metadata: %w", snap.ID, err)
	}
	return snap, nil
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
