// Package sqlite provides a SQLite-backed retrospective store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/retroboard/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/storage"
	"github.com/louisbranch/retroboard/internal/retro/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists retrospective state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite board store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateRetrospective inserts a retrospective and its zones in one
// transaction.
func (s *Store) CreateRetrospective(ctx context.Context, retro domain.Retrospective, zones []domain.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create retrospective: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertRetrospective(ctx, tx, retro); err != nil {
		return err
	}
	for _, zone := range zones {
		if err := upsertZone(ctx, tx, zone); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create retrospective: %w", err)
	}
	return nil
}

// LoadBundle loads the full state of a retrospective.
func (s *Store) LoadBundle(ctx context.Context, retroID string) (storage.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return storage.Bundle{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Bundle{}, fmt.Errorf("storage is not configured")
	}
	retroID = strings.TrimSpace(retroID)
	if retroID == "" {
		return storage.Bundle{}, storage.ErrNotFound
	}

	var bundle storage.Bundle
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, kind, step, facilitator_id, revealer_id,
		        discussed_reflection_id, timer_end_at, created_at, updated_at
		   FROM retrospectives
		  WHERE id = ?`,
		retroID,
	)
	var kind, step string
	var timerEndAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&bundle.Retrospective.ID,
		&bundle.Retrospective.Name,
		&kind,
		&step,
		&bundle.Retrospective.FacilitatorID,
		&bundle.Retrospective.RevealerID,
		&bundle.Retrospective.DiscussedReflectionID,
		&timerEndAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Bundle{}, storage.ErrNotFound
		}
		return storage.Bundle{}, fmt.Errorf("load retrospective: %w", err)
	}
	bundle.Retrospective.Kind = domain.Kind(kind)
	bundle.Retrospective.Step = domain.Step(step)
	bundle.Retrospective.CreatedAt = fromMillis(createdAt)
	bundle.Retrospective.UpdatedAt = fromMillis(updatedAt)
	if timerEndAt.Valid {
		endAt := fromMillis(timerEndAt.Int64)
		bundle.Retrospective.TimerEndAt = &endAt
	}

	if bundle.Participants, err = s.loadParticipants(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	if bundle.Zones, err = s.loadZones(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	if bundle.Topics, err = s.loadTopics(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	if bundle.Reflections, err = s.loadReflections(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	if bundle.Reactions, err = s.loadReactions(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	if bundle.Tasks, err = s.loadTasks(ctx, retroID); err != nil {
		return storage.Bundle{}, err
	}
	return bundle, nil
}

// Apply runs all changes in one transaction.
func (s *Store) Apply(ctx context.Context, changes []storage.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, change := range changes {
		switch c := change.(type) {
		case storage.PutRetrospective:
			err = upsertRetrospective(ctx, tx, c.Retrospective)
		case storage.PutParticipant:
			err = upsertParticipant(ctx, tx, c.Participant)
		case storage.PutZone:
			err = upsertZone(ctx, tx, c.Zone)
		case storage.PutReflection:
			err = upsertReflection(ctx, tx, c.Reflection)
		case storage.PutTopic:
			err = upsertTopic(ctx, tx, c.Topic)
		case storage.PutReaction:
			err = upsertReaction(ctx, tx, c.Reaction)
		case storage.DeleteReaction:
			_, err = tx.ExecContext(ctx, `DELETE FROM reactions WHERE id = ?`, c.ID)
		case storage.PutTask:
			err = upsertTask(ctx, tx, c.Task)
		case storage.DeleteTask:
			_, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, c.ID)
		default:
			err = fmt.Errorf("unsupported change type %T", change)
		}
		if err != nil {
			return fmt.Errorf("apply change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func upsertRetrospective(ctx context.Context, tx *sql.Tx, retro domain.Retrospective) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO retrospectives (
		   id, name, kind, step, facilitator_id, revealer_id,
		   discussed_reflection_id, timer_end_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   step = excluded.step,
		   facilitator_id = excluded.facilitator_id,
		   revealer_id = excluded.revealer_id,
		   discussed_reflection_id = excluded.discussed_reflection_id,
		   timer_end_at = excluded.timer_end_at,
		   updated_at = excluded.updated_at`,
		retro.ID,
		retro.Name,
		string(retro.Kind),
		string(retro.Step),
		retro.FacilitatorID,
		retro.RevealerID,
		retro.DiscussedReflectionID,
		toNullMillis(retro.TimerEndAt),
		toMillis(retro.CreatedAt),
		toMillis(retro.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert retrospective: %w", err)
	}
	return nil
}

func upsertParticipant(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO participants (
		   id, retrospective_id, account_id, surname, color, logged_in, joined_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   surname = excluded.surname,
		   color = excluded.color,
		   logged_in = excluded.logged_in`,
		p.ID,
		p.RetrospectiveID,
		p.AccountID,
		p.Surname,
		p.Color,
		boolToInt(p.LoggedIn),
		toMillis(p.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func upsertZone(ctx context.Context, tx *sql.Tx, zone domain.Zone) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO zones (id, retrospective_id, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		zone.ID,
		zone.RetrospectiveID,
		zone.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert zone: %w", err)
	}
	return nil
}

func upsertReflection(ctx context.Context, tx *sql.Tx, r domain.Reflection) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO reflections (
		   id, retrospective_id, zone_id, owner_id, topic_id, content, revealed, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   topic_id = excluded.topic_id,
		   content = excluded.content,
		   revealed = excluded.revealed`,
		r.ID,
		r.RetrospectiveID,
		r.ZoneID,
		r.OwnerID,
		r.TopicID,
		r.Content,
		boolToInt(r.Revealed),
		toMillis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert reflection: %w", err)
	}
	return nil
}

func upsertTopic(ctx context.Context, tx *sql.Tx, topic domain.Topic) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO topics (id, retrospective_id, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		topic.ID,
		topic.RetrospectiveID,
		topic.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

func upsertReaction(ctx context.Context, tx *sql.Tx, r domain.Reaction) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO reactions (
		   id, retrospective_id, author_id, target_kind, target_id, kind, content
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		r.ID,
		r.RetrospectiveID,
		r.AuthorID,
		string(r.TargetKind),
		r.TargetID,
		string(r.Kind),
		r.Content,
	)
	if err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

func upsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO tasks (
		   id, retrospective_id, author_id, assignee_id, reflection_id,
		   description, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   assignee_id = excluded.assignee_id,
		   reflection_id = excluded.reflection_id,
		   description = excluded.description,
		   updated_at = excluded.updated_at`,
		t.ID,
		t.RetrospectiveID,
		t.AuthorID,
		t.AssigneeID,
		t.ReflectionID,
		t.Description,
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (s *Store) loadParticipants(ctx context.Context, retroID string) ([]domain.Participant, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, account_id, surname, color, logged_in, joined_at
		   FROM participants
		  WHERE retrospective_id = ?
		  ORDER BY joined_at ASC, id ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var loggedIn int64
		var joinedAt int64
		if err := rows.Scan(&p.ID, &p.RetrospectiveID, &p.AccountID, &p.Surname, &p.Color, &loggedIn, &joinedAt); err != nil {
			return nil, fmt.Errorf("load participants: %w", err)
		}
		p.LoggedIn = loggedIn != 0
		p.JoinedAt = fromMillis(joinedAt)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	return participants, nil
}

func (s *Store) loadZones(ctx context.Context, retroID string) ([]domain.Zone, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, name
		   FROM zones
		  WHERE retrospective_id = ?
		  ORDER BY rowid ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		var z domain.Zone
		if err := rows.Scan(&z.ID, &z.RetrospectiveID, &z.Name); err != nil {
			return nil, fmt.Errorf("load zones: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	return zones, nil
}

func (s *Store) loadTopics(ctx context.Context, retroID string) ([]domain.Topic, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, name
		   FROM topics
		  WHERE retrospective_id = ?
		  ORDER BY rowid ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.RetrospectiveID, &t.Name); err != nil {
			return nil, fmt.Errorf("load topics: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return topics, nil
}

func (s *Store) loadReflections(ctx context.Context, retroID string) ([]domain.Reflection, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, zone_id, owner_id, topic_id, content, revealed, created_at
		   FROM reflections
		  WHERE retrospective_id = ?
		  ORDER BY created_at ASC, id ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load reflections: %w", err)
	}
	defer rows.Close()

	var reflections []domain.Reflection
	for rows.Next() {
		var r domain.Reflection
		var revealed int64
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.RetrospectiveID, &r.ZoneID, &r.OwnerID, &r.TopicID, &r.Content, &revealed, &createdAt); err != nil {
			return nil, fmt.Errorf("load reflections: %w", err)
		}
		r.Revealed = revealed != 0
		r.CreatedAt = fromMillis(createdAt)
		reflections = append(reflections, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load reflections: %w", err)
	}
	return reflections, nil
}

func (s *Store) loadReactions(ctx context.Context, retroID string) ([]domain.Reaction, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, author_id, target_kind, target_id, kind, content
		   FROM reactions
		  WHERE retrospective_id = ?
		  ORDER BY rowid ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var r domain.Reaction
		var targetKind, kind string
		if err := rows.Scan(&r.ID, &r.RetrospectiveID, &r.AuthorID, &targetKind, &r.TargetID, &kind, &r.Content); err != nil {
			return nil, fmt.Errorf("load reactions: %w", err)
		}
		r.TargetKind = domain.TargetKind(targetKind)
		r.Kind = domain.ReactionKind(kind)
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	return reactions, nil
}

func (s *Store) loadTasks(ctx context.Context, retroID string) ([]domain.Task, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, retrospective_id, author_id, assignee_id, reflection_id,
		        description, created_at, updated_at
		   FROM tasks
		  WHERE retrospective_id = ?
		  ORDER BY created_at ASC, id ASC`,
		retroID,
	)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &t.RetrospectiveID, &t.AuthorID, &t.AssigneeID, &t.ReflectionID, &t.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		t.CreatedAt = fromMillis(createdAt)
		t.UpdatedAt = fromMillis(updatedAt)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}

var _ storage.Store = (*Store)(nil)
