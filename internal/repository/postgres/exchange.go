package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"threadline/internal/domain/models/chat"
	"threadline/internal/domain/repositories"
	chatRepo "threadline/internal/domain/repositories/chat"
)

// PostgresExchangeRepository implements the ExchangeRepository interface.
// The turns of an exchange are stored as one jsonb array.
type PostgresExchangeRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
}

var _ chatRepo.ExchangeRepository = (*PostgresExchangeRepository)(nil)

// NewExchangeRepository creates a new exchange repository
func NewExchangeRepository(config *RepositoryConfig) *PostgresExchangeRepository {
	return &PostgresExchangeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
}

// EnsureSchema creates the exchange table and its lookup index.
func (r *PostgresExchangeRepository) EnsureSchema(ctx context.Context) error {
	statements := schemaStatements(r.tables)
	return r.tx.ExecTx(ctx, func(ctx context.Context) error {
		db := GetExecutor(ctx, r.pool)
		for _, stmt := range statements {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		r.logger.Debug("exchange schema ready", "table", r.tables.Exchanges)
		return nil
	})
}

func schemaStatements(tables *TableNames) []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				session_id TEXT NOT NULL,
				ts         TIMESTAMPTZ NOT NULL DEFAULT now(),
				history    JSONB NOT NULL
			)`, tables.Exchanges),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_session_idx ON %s (user_id, session_id, ts)`,
			tables.Exchanges, tables.Exchanges),
	}
}

// DropSchema removes the exchange table.
func (r *PostgresExchangeRepository) DropSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, dropStatement(r.tables)); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

func dropStatement(tables *TableNames) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, tables.Exchanges)
}

// Create stores an exchange
func (r *PostgresExchangeRepository) Create(ctx context.Context, msg *chat.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	history, err := json.Marshal(msg.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, session_id, ts, history)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, r.tables.Exchanges)

	db := GetExecutor(ctx, r.pool)
	if _, err := db.Exec(ctx, query, msg.ID, msg.UserID, msg.SessionID, msg.Timestamp, string(history)); err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("exchange %s already exists", msg.ID)
		}
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

// ListByUser returns the user's exchanges ordered by timestamp
func (r *PostgresExchangeRepository) ListByUser(ctx context.Context, userID string) ([]chat.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, session_id, ts, history
		FROM %s
		WHERE user_id = $1
		ORDER BY ts ASC, id ASC
	`, r.tables.Exchanges)

	db := GetExecutor(ctx, r.pool)
	rows, err := db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var (
			msg     chat.Message
			history []byte
		)
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.SessionID, &msg.Timestamp, &history); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		if err := json.Unmarshal(history, &msg.History); err != nil {
			return nil, fmt.Errorf("decode history of %s: %w", msg.ID, err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return msgs, nil
}

// DeleteBySession removes every exchange of one conversation
func (r *PostgresExchangeRepository) DeleteBySession(ctx context.Context, userID, sessionID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND session_id = $2`, r.tables.Exchanges)

	db := GetExecutor(ctx, r.pool)
	tag, err := db.Exec(ctx, query, userID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete exchanges: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the pool can reach the database and the table exists.
func (r *PostgresExchangeRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return err
	}
	var one int
	query := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, r.tables.Exchanges)
	err := r.pool.QueryRow(ctx, query).Scan(&one)
	switch {
	case err == nil, IsPgNoRowsError(err):
		return nil
	case IsPgUndefinedTableError(err):
		return fmt.Errorf("table %s missing: %w", r.tables.Exchanges, err)
	default:
		return err
	}
}
