package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/flow"
	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
	"github.com/shamadu25/rave-queue-sub001/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	intn func(int) int
}

type Options struct {
	// Intn overrides the token sequence source, used by tests.
	Intn func(int) int
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	return &Store{pool: pool, intn: options.Intn}
}

const entryColumns = `id, token, full_name, phone_number, department, intended_department,
	priority, status, created_at, called_at, served_at, completed_at, skipped_at,
	transferred_from, served_by`

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, findErr := findEntryByRequestID(ctx, tx, input.RequestID)
		if findErr != nil {
			err = findErr
			return models.QueueEntry{}, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.QueueEntry{}, err
			}
			return existing, nil
		}
	}

	dept, err := getDepartment(ctx, tx, input.Department)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !dept.IsActive {
		err = store.ErrInactiveDepartment
		return models.QueueEntry{}, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	token := store.GenerateToken(dept.Prefix, s.intn)

	entry := models.QueueEntry{
		ID:                 uuid.NewString(),
		Token:              token,
		FullName:           input.FullName,
		PhoneNumber:        input.PhoneNumber,
		Department:         input.Department,
		IntendedDepartment: input.IntendedDepartment,
		Priority:           priority,
		Status:             models.StatusWaiting,
		CreatedAt:          createdAt,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_entries (
			id, request_id, token, full_name, phone_number, department,
			intended_department, priority, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, nullIfEmpty(input.RequestID), entry.Token, entry.FullName, nullIfEmpty(entry.PhoneNumber),
		entry.Department, nullIfEmpty(entry.IntendedDepartment), entry.Priority, entry.Status, entry.CreatedAt)
	if err != nil {
		return models.QueueEntry{}, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventEntryCreated, entry); err != nil {
		return models.QueueEntry{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, nil
		}
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) ListEntries(ctx context.Context, filter store.ListFilter) ([]models.QueueEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM queue_entries`
	var args []interface{}
	var conds []string
	if filter.Department != "" && filter.Department != "all" {
		args = append(args, filter.Department)
		conds = append(conds, "department = $1")
	}
	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		if len(args) == 1 {
			conds = append(conds, "status = $1")
		} else {
			conds = append(conds, "status = $2")
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + conds[0]
		if len(conds) == 2 {
			query += " AND " + conds[1]
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Transition(ctx context.Context, input store.TransitionInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, err := lockEntry(ctx, tx, input.EntryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !store.ValidTransition(input.Action, entry.Status) {
		err = store.ErrInvalidState
		return models.QueueEntry{}, err
	}
	next, _ := store.StatusAfter(input.Action)

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	entry.Status = next
	switch input.Action {
	case "call":
		entry.CalledAt = &occurredAt
		_, err = tx.Exec(ctx, `UPDATE queue_entries SET status=$2, called_at=$3 WHERE id=$1`,
			entry.ID, next, occurredAt)
	case "serve":
		entry.ServedAt = &occurredAt
		if input.ActorID != "" {
			actor := input.ActorID
			entry.ServedBy = &actor
		}
		_, err = tx.Exec(ctx, `UPDATE queue_entries SET status=$2, served_at=$3, served_by=$4 WHERE id=$1`,
			entry.ID, next, occurredAt, nullIfEmpty(input.ActorID))
	case "complete":
		entry.CompletedAt = &occurredAt
		_, err = tx.Exec(ctx, `UPDATE queue_entries SET status=$2, completed_at=$3 WHERE id=$1`,
			entry.ID, next, occurredAt)
	case "skip":
		entry.SkippedAt = &occurredAt
		_, err = tx.Exec(ctx, `UPDATE queue_entries SET status=$2, skipped_at=$3 WHERE id=$1`,
			entry.ID, next, occurredAt)
	}
	if err != nil {
		return models.QueueEntry{}, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventForAction(input.Action), entry); err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE department = $1 AND status = $2
		ORDER BY (priority = $3) DESC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, input.Department, models.StatusWaiting, models.PriorityEmergency)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrNoEntry
		}
		return models.QueueEntry{}, err
	}

	entry.Status = models.StatusCalled
	entry.CalledAt = &calledAt
	_, err = tx.Exec(ctx, `UPDATE queue_entries SET status=$2, called_at=$3 WHERE id=$1`,
		entry.ID, entry.Status, calledAt)
	if err != nil {
		return models.QueueEntry{}, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventEntryCalled, entry); err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

// Transfer resets the entry into a fresh waiting segment in the destination
// department and appends the audit record in the same transaction, so either
// both writes land or neither does.
func (s *Store) Transfer(ctx context.Context, input store.TransferInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, err := s.applyTransfer(ctx, tx, input)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) FlowTransfer(ctx context.Context, input store.FlowTransferInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, err := lockEntry(ctx, tx, input.EntryID)
	if err != nil {
		return models.QueueEntry{}, err
	}

	serviceFlow, err := getServiceFlow(ctx, tx, input.FlowID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !flow.Offered(serviceFlow, entry.Department) {
		err = store.ErrFlowNotOffered
		return models.QueueEntry{}, err
	}
	next, err := flow.NextDepartment(serviceFlow, entry.Department)
	if err != nil {
		if errors.Is(err, flow.ErrComplete) {
			err = store.ErrFlowComplete
		}
		return models.QueueEntry{}, err
	}

	entry, err = s.applyTransfer(ctx, tx, store.TransferInput{
		RequestID:    input.RequestID,
		EntryID:      input.EntryID,
		ToDepartment: next,
		ActorID:      input.ActorID,
		Reason:       "flow: " + serviceFlow.Name,
		OccurredAt:   input.OccurredAt,
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) applyTransfer(ctx context.Context, tx pgx.Tx, input store.TransferInput) (models.QueueEntry, error) {
	entry, err := lockEntry(ctx, tx, input.EntryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if entry.Department == input.ToDepartment {
		return models.QueueEntry{}, store.ErrSameDepartment
	}
	dest, err := getDepartment(ctx, tx, input.ToDepartment)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !dest.IsActive {
		return models.QueueEntry{}, store.ErrInactiveDepartment
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	from := entry.Department

	_, err = tx.Exec(ctx, `
		UPDATE queue_entries
		SET department = $2,
			status = $3,
			transferred_from = $4,
			called_at = NULL,
			served_at = NULL,
			completed_at = NULL,
			skipped_at = NULL,
			served_by = NULL
		WHERE id = $1
	`, entry.ID, input.ToDepartment, models.StatusWaiting, from)
	if err != nil {
		return models.QueueEntry{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_transfers (id, entry_id, from_department, to_department, transferred_by, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, uuid.NewString(), entry.ID, from, input.ToDepartment, input.ActorID, nullIfEmpty(input.Reason), occurredAt)
	if err != nil {
		return models.QueueEntry{}, err
	}

	entry.Department = input.ToDepartment
	entry.Status = models.StatusWaiting
	entry.TransferredFrom = &from
	entry.CalledAt = nil
	entry.ServedAt = nil
	entry.CompletedAt = nil
	entry.SkippedAt = nil
	entry.ServedBy = nil

	if err = insertOutboxEvent(ctx, tx, store.EventEntryTransferred, entry); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) DeleteEntry(ctx context.Context, entryID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entry, err := lockEntry(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, entryID); err != nil {
		return err
	}
	if err = insertOutboxEvent(ctx, tx, store.EventEntryDeleted, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListDepartments(ctx context.Context, includeInternal bool) ([]models.Department, error) {
	query := `SELECT name, color_code, prefix, is_internal, is_active FROM departments WHERE is_active`
	if !includeInternal {
		query += ` AND NOT is_internal`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []models.Department
	for rows.Next() {
		var dept models.Department
		var colorNull sql.NullString
		if err := rows.Scan(&dept.Name, &colorNull, &dept.Prefix, &dept.IsInternal, &dept.IsActive); err != nil {
			return nil, err
		}
		if colorNull.Valid {
			dept.ColorCode = colorNull.String
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return departments, nil
}

func (s *Store) ListServiceFlows(ctx context.Context) ([]models.ServiceFlow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, departments, is_active
		FROM service_flows
		WHERE is_active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []models.ServiceFlow
	for rows.Next() {
		var f models.ServiceFlow
		if err := rows.Scan(&f.ID, &f.Name, &f.Departments, &f.IsActive); err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flows, nil
}

func (s *Store) ListTransfers(ctx context.Context, entryID string) ([]models.TransferRecord, error) {
	query := `SELECT id, entry_id, from_department, to_department, transferred_by, reason, created_at FROM queue_transfers`
	var args []interface{}
	if entryID != "" {
		query += ` WHERE entry_id = $1`
		args = append(args, entryID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TransferRecord
	for rows.Next() {
		var record models.TransferRecord
		var reasonNull sql.NullString
		if err := rows.Scan(&record.ID, &record.EntryID, &record.FromDepartment, &record.ToDepartment,
			&record.TransferredBy, &reasonNull, &record.CreatedAt); err != nil {
			return nil, err
		}
		if reasonNull.Valid {
			record.Reason = reasonNull.String
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if afterID == "" {
		afterID = "00000000-0000-0000-0000-000000000000"
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, after, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetOffset(ctx context.Context, consumer string) (store.Offset, error) {
	var offset store.Offset
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_time, last_event_id FROM feed_offsets WHERE consumer = $1
	`, consumer)
	if err := row.Scan(&offset.LastEventTime, &offset.LastEventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Offset{}, nil
		}
		return store.Offset{}, err
	}
	return offset, nil
}

func (s *Store) UpdateOffset(ctx context.Context, consumer string, offset store.Offset) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_offsets (consumer, last_event_time, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer) DO UPDATE SET last_event_time = $2, last_event_id = $3
	`, consumer, offset.LastEventTime, offset.LastEventID)
	return err
}

func (s *Store) LoadSettings(ctx context.Context) (settings.Settings, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return settings.Defaults(), err
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings.Defaults(), err
		}
		raw[key] = value
	}
	if err := rows.Err(); err != nil {
		return settings.Defaults(), err
	}
	return settings.FromRows(raw), nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, expires_at FROM sessions WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return store.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	var deptNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT p.user_id, p.full_name, p.role, ud.department
		FROM profiles p
		LEFT JOIN user_departments ud ON ud.user_id = p.user_id
		WHERE p.user_id = $1
	`, userID)
	if err := row.Scan(&profile.UserID, &profile.FullName, &profile.Role, &deptNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, store.ErrAccessDenied
		}
		return models.Profile{}, err
	}
	if deptNull.Valid {
		profile.Department = deptNull.String
	}
	return profile, nil
}

func lockEntry(ctx context.Context, tx pgx.Tx, entryID string) (models.QueueEntry, error) {
	row := tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1 FOR UPDATE`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func findEntryByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.QueueEntry, bool, error) {
	row := tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE request_id = $1`, requestID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, nil
		}
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

func getDepartment(ctx context.Context, tx pgx.Tx, name string) (models.Department, error) {
	var dept models.Department
	var colorNull sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT name, color_code, prefix, is_internal, is_active FROM departments WHERE name = $1
	`, name)
	if err := row.Scan(&dept.Name, &colorNull, &dept.Prefix, &dept.IsInternal, &dept.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Department{}, store.ErrDepartmentNotFound
		}
		return models.Department{}, err
	}
	if colorNull.Valid {
		dept.ColorCode = colorNull.String
	}
	return dept, nil
}

func getServiceFlow(ctx context.Context, tx pgx.Tx, flowID string) (models.ServiceFlow, error) {
	var f models.ServiceFlow
	row := tx.QueryRow(ctx, `
		SELECT id, name, departments, is_active FROM service_flows WHERE id = $1
	`, flowID)
	if err := row.Scan(&f.ID, &f.Name, &f.Departments, &f.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ServiceFlow{}, store.ErrFlowNotFound
		}
		return models.ServiceFlow{}, err
	}
	if !f.IsActive {
		return models.ServiceFlow{}, store.ErrFlowNotFound
	}
	return f, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, entry models.QueueEntry) error {
	payload, err := store.EncodeEntryPayload(entry)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payload, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var phoneNull, intendedNull, transferredNull, servedByNull sql.NullString
	var calledNull, servedNull, completedNull, skippedNull sql.NullTime
	err := row.Scan(&entry.ID, &entry.Token, &entry.FullName, &phoneNull, &entry.Department,
		&intendedNull, &entry.Priority, &entry.Status, &entry.CreatedAt,
		&calledNull, &servedNull, &completedNull, &skippedNull, &transferredNull, &servedByNull)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if phoneNull.Valid {
		entry.PhoneNumber = phoneNull.String
	}
	if intendedNull.Valid {
		entry.IntendedDepartment = intendedNull.String
	}
	entry.CalledAt = nullTimePtr(calledNull)
	entry.ServedAt = nullTimePtr(servedNull)
	entry.CompletedAt = nullTimePtr(completedNull)
	entry.SkippedAt = nullTimePtr(skippedNull)
	entry.TransferredFrom = nullStringPtr(transferredNull)
	entry.ServedBy = nullStringPtr(servedByNull)
	return entry, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
