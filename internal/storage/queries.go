package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row models.

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    string
}

type Habit struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt string
}

type HabitEntry struct {
	ID        int64
	HabitID   int64
	UserID    sql.NullInt64
	Date      string
	Completed bool
}

type JournalEntry struct {
	ID     int64
	UserID int64
	Date   string
	Text   string
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, password_hash, created_at)
VALUES (?, ?, ?)
RETURNING id, email, password_hash, created_at
`

type CreateUserParams struct {
	Email        string
	PasswordHash string
	CreatedAt    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Email, arg.PasswordHash, arg.CreatedAt)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, email, password_hash, created_at FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, password_hash, created_at FROM users WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getFirstUser = `-- name: GetFirstUser :one
SELECT id, email, password_hash, created_at FROM users ORDER BY id LIMIT 1
`

func (q *Queries) GetFirstUser(ctx context.Context) (User, error) {
	row := q.db.QueryRowContext(ctx, getFirstUser)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const createHabit = `-- name: CreateHabit :one
INSERT INTO habits (user_id, title, created_at)
VALUES (?, ?, ?)
RETURNING id, user_id, title, created_at
`

type CreateHabitParams struct {
	UserID    int64
	Title     string
	CreatedAt string
}

func (q *Queries) CreateHabit(ctx context.Context, arg CreateHabitParams) (Habit, error) {
	row := q.db.QueryRowContext(ctx, createHabit, arg.UserID, arg.Title, arg.CreatedAt)
	var i Habit
	err := row.Scan(&i.ID, &i.UserID, &i.Title, &i.CreatedAt)
	return i, err
}

const getHabit = `-- name: GetHabit :one
SELECT id, user_id, title, created_at FROM habits WHERE id = ?
`

func (q *Queries) GetHabit(ctx context.Context, id int64) (Habit, error) {
	row := q.db.QueryRowContext(ctx, getHabit, id)
	var i Habit
	err := row.Scan(&i.ID, &i.UserID, &i.Title, &i.CreatedAt)
	return i, err
}

const getHabitForUser = `-- name: GetHabitForUser :one
SELECT id, user_id, title, created_at FROM habits WHERE id = ? AND user_id = ?
`

type GetHabitForUserParams struct {
	ID     int64
	UserID int64
}

func (q *Queries) GetHabitForUser(ctx context.Context, arg GetHabitForUserParams) (Habit, error) {
	row := q.db.QueryRowContext(ctx, getHabitForUser, arg.ID, arg.UserID)
	var i Habit
	err := row.Scan(&i.ID, &i.UserID, &i.Title, &i.CreatedAt)
	return i, err
}

const listHabitsByUser = `-- name: ListHabitsByUser :many
SELECT id, user_id, title, created_at FROM habits WHERE user_id = ? ORDER BY id
`

func (q *Queries) ListHabitsByUser(ctx context.Context, userID int64) ([]Habit, error) {
	rows, err := q.db.QueryContext(ctx, listHabitsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Habit
	for rows.Next() {
		var i Habit
		if err := rows.Scan(&i.ID, &i.UserID, &i.Title, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countHabitsByUser = `-- name: CountHabitsByUser :one
SELECT COUNT(*) FROM habits WHERE user_id = ?
`

func (q *Queries) CountHabitsByUser(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countHabitsByUser, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countCompletedOn = `-- name: CountCompletedOn :one
SELECT COUNT(*) FROM habit_entries WHERE user_id = ? AND date = ? AND completed = 1
`

type CountCompletedOnParams struct {
	UserID int64
	Date   string
}

func (q *Queries) CountCompletedOn(ctx context.Context, arg CountCompletedOnParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCompletedOn, arg.UserID, arg.Date)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countCompletedBetween = `-- name: CountCompletedBetween :one
SELECT COUNT(*) FROM habit_entries
WHERE user_id = ? AND date >= ? AND date <= ? AND completed = 1
`

type CountCompletedBetweenParams struct {
	UserID int64
	From   string
	To     string
}

func (q *Queries) CountCompletedBetween(ctx context.Context, arg CountCompletedBetweenParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCompletedBetween, arg.UserID, arg.From, arg.To)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listEntriesBetween = `-- name: ListEntriesBetween :many
SELECT id, habit_id, user_id, date, completed FROM habit_entries
WHERE habit_id = ? AND date >= ? AND date <= ?
ORDER BY date
`

type ListEntriesBetweenParams struct {
	HabitID int64
	From    string
	To      string
}

func (q *Queries) ListEntriesBetween(ctx context.Context, arg ListEntriesBetweenParams) ([]HabitEntry, error) {
	rows, err := q.db.QueryContext(ctx, listEntriesBetween, arg.HabitID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HabitEntry
	for rows.Next() {
		var i HabitEntry
		if err := rows.Scan(&i.ID, &i.HabitID, &i.UserID, &i.Date, &i.Completed); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertEntryIfMissing = `-- name: InsertEntryIfMissing :execrows
INSERT INTO habit_entries (habit_id, user_id, date, completed)
VALUES (?, ?, ?, ?)
ON CONFLICT (habit_id, date) DO NOTHING
`

type InsertEntryIfMissingParams struct {
	HabitID   int64
	UserID    sql.NullInt64
	Date      string
	Completed bool
}

func (q *Queries) InsertEntryIfMissing(ctx context.Context, arg InsertEntryIfMissingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertEntryIfMissing, arg.HabitID, arg.UserID, arg.Date, arg.Completed)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getEntry = `-- name: GetEntry :one
SELECT id, habit_id, user_id, date, completed FROM habit_entries WHERE habit_id = ? AND date = ?
`

type GetEntryParams struct {
	HabitID int64
	Date    string
}

func (q *Queries) GetEntry(ctx context.Context, arg GetEntryParams) (HabitEntry, error) {
	row := q.db.QueryRowContext(ctx, getEntry, arg.HabitID, arg.Date)
	var i HabitEntry
	err := row.Scan(&i.ID, &i.HabitID, &i.UserID, &i.Date, &i.Completed)
	return i, err
}

const updateEntry = `-- name: UpdateEntry :execrows
UPDATE habit_entries SET completed = ?, user_id = ? WHERE id = ?
`

type UpdateEntryParams struct {
	Completed bool
	UserID    sql.NullInt64
	ID        int64
}

func (q *Queries) UpdateEntry(ctx context.Context, arg UpdateEntryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateEntry, arg.Completed, arg.UserID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getJournalEntry = `-- name: GetJournalEntry :one
SELECT id, user_id, date, text FROM journal_entries WHERE user_id = ? AND date = ?
`

type GetJournalEntryParams struct {
	UserID int64
	Date   string
}

func (q *Queries) GetJournalEntry(ctx context.Context, arg GetJournalEntryParams) (JournalEntry, error) {
	row := q.db.QueryRowContext(ctx, getJournalEntry, arg.UserID, arg.Date)
	var i JournalEntry
	err := row.Scan(&i.ID, &i.UserID, &i.Date, &i.Text)
	return i, err
}

const upsertJournalEntry = `-- name: UpsertJournalEntry :one
INSERT INTO journal_entries (user_id, date, text)
VALUES (?, ?, ?)
ON CONFLICT (user_id, date) DO UPDATE SET text = excluded.text
RETURNING id, user_id, date, text
`

type UpsertJournalEntryParams struct {
	UserID int64
	Date   string
	Text   string
}

func (q *Queries) UpsertJournalEntry(ctx context.Context, arg UpsertJournalEntryParams) (JournalEntry, error) {
	row := q.db.QueryRowContext(ctx, upsertJournalEntry, arg.UserID, arg.Date, arg.Text)
	var i JournalEntry
	err := row.Scan(&i.ID, &i.UserID, &i.Date, &i.Text)
	return i, err
}
