package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/tablero/internal/model"
)

// invalidTextRepresentation はUUID列に不正な文字列を渡した場合のSQLSTATE。
const invalidTextRepresentation = "22P02"

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// Create はタスクを作成する。
// CreatedAt/UpdatedAtがゼロ値の場合はNULLとして保存する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, status, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.Title, task.Description, string(task.Status), task.OwnerID,
		nullTime(task.CreatedAt), nullTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateStatus は所有者のタスクのステータスとupdated_atを更新する。
func (r *PostgresTaskRepo) UpdateStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, updated_at = $2
		 WHERE id = $3 AND owner_id = $4`,
		string(status), updatedAt, taskID, ownerID,
	)
	if err != nil {
		if isInvalidID(err) {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return expectOneRow(result, taskID)
}

// Delete は所有者のタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, ownerID, taskID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID,
	)
	if err != nil {
		if isInvalidID(err) {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectOneRow(result, taskID)
}

// ListByOwner は所有者の全タスクを返す。
// created_at/updated_atがNULLの行はゼロ値のtime.Timeとして返す。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, status, owner_id, created_at, updated_at
		 FROM tasks
		 WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		var status string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &status, &task.OwnerID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Status = model.TaskStatus(status)
		if createdAt.Valid {
			task.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			task.UpdatedAt = updatedAt.Time
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// isInvalidID はIDの形式不正によるエラーかどうかを判定する。
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

func expectOneRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
