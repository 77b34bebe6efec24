package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, status, assigned_worker, error_message, enqueued_at, queued_at, status_changed_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id             string
		statusStr      string
		assignedWorker sql.NullInt64
		errorMessage   sql.NullString
		enqueuedRaw    sql.NullString
		queuedRaw      sql.NullString
		changedRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&assignedWorker,
		&errorMessage,
		&enqueuedRaw,
		&queuedRaw,
		&changedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if assignedWorker.Valid {
		worker := assignedWorker.Int64
		task.AssignedWorker = &worker
	}
	if enqueued, err := parseTimeString(enqueuedRaw.String); err == nil {
		task.EnqueuedAt = enqueued
	}
	if queuedRaw.Valid {
		if queued, err := parseTimeString(queuedRaw.String); err == nil {
			task.QueuedAt = &queued
		}
	}
	if changed, err := parseTimeString(changedRaw.String); err == nil {
		task.StatusChangedAt = changed
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

const workerColumns = "id, display_name, last_ping, daily_task_count, last_reset_date, current_task_id"

func scanWorker(scanner interface{ Scan(dest ...any) error }) (*Worker, error) {
	var (
		id          int64
		displayName string
		lastPingRaw sql.NullString
		dailyCount  int
		resetDate   sql.NullString
		currentTask sql.NullString
	)

	if err := scanner.Scan(&id, &displayName, &lastPingRaw, &dailyCount, &resetDate, &currentTask); err != nil {
		return nil, err
	}

	worker := &Worker{
		ID:             id,
		DisplayName:    displayName,
		DailyTaskCount: dailyCount,
		LastResetDate:  resetDate.String,
		CurrentTaskID:  currentTask.String,
	}
	if lastPingRaw.Valid {
		if ping, err := parseTimeString(lastPingRaw.String); err == nil {
			worker.LastPing = &ping
		}
	}
	return worker, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// timeLayout keeps a fixed fractional width so stored timestamps order
// correctly under SQLite's string comparison.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
