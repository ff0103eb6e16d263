package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Хранилище SQLite для одного узла и тестов.
// Одно соединение и BEGIN IMMEDIATE: все записи идут последовательно
type SQLiteDB struct {
	db     *sql.DB
	logger *zap.Logger
	clock  *clock
	sqlb   sq.StatementBuilderType
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

var _ interf.Storage = (*SQLiteDB)(nil)

// path - файл базы или ":memory:"
func NewSQLiteDB(ctx context.Context, path string, logger *zap.Logger) (*SQLiteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is not set")
	}
	var dsn string
	if path == ":memory:" {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000"
	} else {
		dsn = "file:" + path + "?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &SQLiteDB{
		db:     conn,
		logger: logger,
		clock:  &clock{},
		sqlb:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err = s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("Schema error", zap.Error(err), zap.String("query", stmt))
			return model.WrapInfra("migrate", err)
		}
	}
	return nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return model.WrapInfra("ping", s.db.PingContext(ctx))
}

func (s *SQLiteDB) Close() {
	s.db.Close()
}

func (s *SQLiteDB) sqlError(op string, err error, query string, args []any) error {
	s.logger.Error("SQL error",
		zap.Error(err),
		zap.String("service", op),
		zap.String("query", query),
		zap.Any("args", args),
	)
	return model.WrapInfra(op, err)
}

func isSQLiteUnique(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func micros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// Журнал

func (s *SQLiteDB) Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	return s.appendEntry(ctx, s.db, entry)
}

func (s *SQLiteDB) appendEntry(ctx context.Context, q sqlQuerier, entry model.LedgerEntry) (model.LedgerEntry, error) {
	if !entry.Amount.IsPositive() {
		return model.LedgerEntry{}, model.NewValidationError("amount", "must be positive")
	}
	if !entry.Type.Valid() {
		return model.LedgerEntry{}, model.NewValidationError("type", "must be MINT or BURN")
	}
	meta, err := entry.Metadata.Encode(0)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	entry.ID = uuid.New()
	entry.CreatedAt = s.clock.Now()

	query, args, err := s.sqlb.Insert("ledger_entries").
		Columns(entryColumns...).
		Values(entry.ID.String(), entry.BrandID, entry.UserID, string(entry.Type), entry.Amount.String(), entry.Reason,
			nullJSON(meta), nullString(entry.IdempotencyKey), micros(entry.CreatedAt)).
		ToSql()
	if err != nil {
		return model.LedgerEntry{}, s.sqlError("Append", err, query, args)
	}
	if _, err = q.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUnique(err) {
			return model.LedgerEntry{}, model.NewValidationError("idempotencyKey", "already used")
		}
		return model.LedgerEntry{}, s.sqlError("Append", err, query, args)
	}
	return entry, nil
}

func (s *SQLiteDB) Summary(ctx context.Context, brandID string, userID string) (model.BalanceSummary, error) {
	return s.summary(ctx, s.db, brandID, userID)
}

// SQLite суммирует TEXT как REAL, поэтому сумма считается в decimal
func (s *SQLiteDB) summary(ctx context.Context, q sqlQuerier, brandID string, userID string) (model.BalanceSummary, error) {
	query, args, err := s.sqlb.Select("type", "amount").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "user_id": userID}).
		ToSql()
	if err != nil {
		return model.BalanceSummary{}, s.sqlError("Summary", err, query, args)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return model.BalanceSummary{}, s.sqlError("Summary", err, query, args)
	}
	defer rows.Close()
	summary := model.BalanceSummary{}
	for rows.Next() {
		var entryType, amount string
		if err = rows.Scan(&entryType, &amount); err != nil {
			return model.BalanceSummary{}, model.WrapInfra("Summary", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return model.BalanceSummary{}, model.WrapInfra("Summary", err)
		}
		summary.Add(model.EntryType(entryType), value)
	}
	return summary, model.WrapInfra("Summary", rows.Err())
}

func (s *SQLiteDB) BrandSummary(ctx context.Context, brandID string) (model.BrandSummary, error) {
	query, args, err := s.sqlb.Select("user_id", "type", "amount").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID}).
		ToSql()
	if err != nil {
		return model.BrandSummary{}, s.sqlError("BrandSummary", err, query, args)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.BrandSummary{}, s.sqlError("BrandSummary", err, query, args)
	}
	defer rows.Close()
	ledger := model.BalanceSummary{}
	users := map[string]struct{}{}
	for rows.Next() {
		var userID, entryType, amount string
		if err = rows.Scan(&userID, &entryType, &amount); err != nil {
			return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
		}
		ledger.Add(model.EntryType(entryType), value)
		users[userID] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
	}
	rows.Close()

	query, args, err = s.sqlb.Select("points_used").
		From("redemptions").
		Where(sq.Eq{"brand_id": brandID, "status": string(model.RedemptionCompleted)}).
		ToSql()
	if err != nil {
		return model.BrandSummary{}, s.sqlError("BrandSummary", err, query, args)
	}
	redemptions, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.BrandSummary{}, s.sqlError("BrandSummary", err, query, args)
	}
	defer redemptions.Close()
	redeemed := decimal.Zero
	for redemptions.Next() {
		var pointsUsed string
		if err = redemptions.Scan(&pointsUsed); err != nil {
			return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
		}
		value, err := decimal.NewFromString(pointsUsed)
		if err != nil {
			return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
		}
		redeemed = redeemed.Add(value)
	}
	if err = redemptions.Err(); err != nil {
		return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
	}

	return model.BrandSummary{
		BrandID:             brandID,
		Accounts:            len(users),
		TotalPointsIssued:   ledger.Minted,
		TotalPointsBurned:   ledger.Burned,
		TotalPointsRedeemed: redeemed,
		OutstandingPoints:   ledger.Net(),
	}, nil
}

func (s *SQLiteDB) CountMints(ctx context.Context, brandID string, userID string, since time.Time) (count int, err error) {
	query, args, err := s.sqlb.Select("COUNT(*)").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "user_id": userID, "type": string(model.MINT)}).
		Where(sq.GtOrEq{"created_at": micros(since)}).
		ToSql()
	if err != nil {
		return 0, s.sqlError("CountMints", err, query, args)
	}
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, s.sqlError("CountMints", err, query, args)
	}
	return count, nil
}

func (s *SQLiteDB) History(ctx context.Context, hq model.HistoryQuery) ([]model.LedgerEntry, error) {
	var before any
	if !hq.Before.IsZero() {
		before = micros(hq.Before)
	}
	query, args, err := historyWhere(s.sqlb.Select(entryColumns...).From("ledger_entries"), hq, before).ToSql()
	if err != nil {
		return nil, s.sqlError("History", err, query, args)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.sqlError("History", err, query, args)
	}
	defer rows.Close()
	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, model.WrapInfra("History", err)
		}
		entries = append(entries, entry)
	}
	return entries, model.WrapInfra("History", rows.Err())
}

func (s *SQLiteDB) FindByIdempotencyKey(ctx context.Context, brandID string, key string) (*model.LedgerEntry, error) {
	return s.findByKey(ctx, s.db, brandID, key)
}

func (s *SQLiteDB) findByKey(ctx context.Context, q sqlQuerier, brandID string, key string) (*model.LedgerEntry, error) {
	query, args, err := s.sqlb.Select(entryColumns...).
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "idempotency_key": key}).
		ToSql()
	if err != nil {
		return nil, s.sqlError("FindByIdempotencyKey", err, query, args)
	}
	entry, err := scanSQLiteEntry(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.sqlError("FindByIdempotencyKey", err, query, args)
	}
	return &entry, nil
}

// BEGIN IMMEDIATE берет блокировку записи на всю базу, это покрывает блокировку счета
func (s *SQLiteDB) InAccountTx(ctx context.Context, brandID string, userID string, fn func(ctx context.Context, tx interf.AccountTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapInfra("InAccountTx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "INSERT OR IGNORE INTO point_accounts (brand_id, user_id) VALUES (?, ?)", brandID, userID)
	if err != nil {
		return s.sqlError("InAccountTx", err, "INSERT OR IGNORE INTO point_accounts", []any{brandID, userID})
	}

	err = fn(ctx, &sqliteAccountTx{db: s, tx: tx, brandID: brandID, userID: userID})
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return model.WrapInfra("InAccountTx", err)
	}
	return nil
}

type sqliteAccountTx struct {
	db      *SQLiteDB
	tx      *sql.Tx
	brandID string
	userID  string
}

func (t *sqliteAccountTx) Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	entry.BrandID = t.brandID
	entry.UserID = t.userID
	return t.db.appendEntry(ctx, t.tx, entry)
}

func (t *sqliteAccountTx) Summary(ctx context.Context) (model.BalanceSummary, error) {
	return t.db.summary(ctx, t.tx, t.brandID, t.userID)
}

func (t *sqliteAccountTx) FindByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	return t.db.findByKey(ctx, t.tx, t.brandID, key)
}

func (t *sqliteAccountTx) CreateRedemption(ctx context.Context, redemption model.Redemption) (model.Redemption, error) {
	if !redemption.PointsUsed.IsPositive() {
		return model.Redemption{}, model.NewValidationError("pointsUsed", "must be positive")
	}
	meta, err := redemption.Metadata.Encode(0)
	if err != nil {
		return model.Redemption{}, err
	}
	redemption.ID = uuid.New()
	redemption.BrandID = t.brandID
	redemption.UserID = t.userID
	redemption.CreatedAt = t.db.clock.Now()
	redemption.UpdatedAt = redemption.CreatedAt

	query, args, err := t.db.sqlb.Insert("redemptions").
		Columns(redemptionColumns...).
		Values(redemption.ID.String(), redemption.BrandID, redemption.UserID, nullString(redemption.CampaignID),
			redemption.PointsUsed.String(), string(redemption.Status), nullJSON(meta),
			micros(redemption.CreatedAt), micros(redemption.UpdatedAt)).
		ToSql()
	if err != nil {
		return model.Redemption{}, t.db.sqlError("CreateRedemption", err, query, args)
	}
	if _, err = t.tx.ExecContext(ctx, query, args...); err != nil {
		return model.Redemption{}, t.db.sqlError("CreateRedemption", err, query, args)
	}
	return redemption, nil
}

func (t *sqliteAccountTx) GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return t.db.getRedemption(ctx, t.tx, id)
}

func (t *sqliteAccountTx) SetRedemptionStatus(ctx context.Context, id uuid.UUID, status model.RedemptionStatus) (model.Redemption, error) {
	query, args, err := t.db.sqlb.Update("redemptions").
		Set("status", string(status)).
		Set("updated_at", micros(t.db.clock.Now())).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return model.Redemption{}, t.db.sqlError("SetRedemptionStatus", err, query, args)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Redemption{}, t.db.sqlError("SetRedemptionStatus", err, query, args)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Redemption{}, model.NewNotFoundError("redemption", id.String())
	}
	return t.db.getRedemption(ctx, t.tx, id)
}

func (s *SQLiteDB) GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return s.getRedemption(ctx, s.db, id)
}

func (s *SQLiteDB) getRedemption(ctx context.Context, q sqlQuerier, id uuid.UUID) (model.Redemption, error) {
	query, args, err := s.sqlb.Select(redemptionColumns...).From("redemptions").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return model.Redemption{}, s.sqlError("GetRedemption", err, query, args)
	}
	r, err := scanSQLiteRedemption(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Redemption{}, model.NewNotFoundError("redemption", id.String())
		}
		return model.Redemption{}, s.sqlError("GetRedemption", err, query, args)
	}
	return r, nil
}

func (s *SQLiteDB) ListRedemptions(ctx context.Context, filter model.RedemptionFilter) ([]model.Redemption, error) {
	query, args, err := redemptionWhere(s.sqlb.Select(redemptionColumns...).From("redemptions"), filter).ToSql()
	if err != nil {
		return nil, s.sqlError("ListRedemptions", err, query, args)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.sqlError("ListRedemptions", err, query, args)
	}
	defer rows.Close()
	redemptions := []model.Redemption{}
	for rows.Next() {
		r, err := scanSQLiteRedemption(rows)
		if err != nil {
			return nil, model.WrapInfra("ListRedemptions", err)
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, model.WrapInfra("ListRedemptions", rows.Err())
}

// Флаги

func (s *SQLiteDB) CreateFlag(ctx context.Context, flag model.FraudFlag) (model.FraudFlag, error) {
	details, err := encodeDetails(flag.Details)
	if err != nil {
		return model.FraudFlag{}, model.NewValidationError("details", err.Error())
	}
	flag.ID = uuid.New()
	flag.CreatedAt = s.clock.Now()
	if flag.Status == "" {
		flag.Status = model.FlagPending
	}
	query, args, err := s.sqlb.Insert("fraud_flags").
		Columns("id", "user_id", "brand_id", "severity", "reason", "details", "status", "created_at").
		Values(flag.ID.String(), flag.UserID, nullString(flag.BrandID), string(flag.Severity), flag.Reason,
			nullJSON(details), string(flag.Status), micros(flag.CreatedAt)).
		ToSql()
	if err != nil {
		return model.FraudFlag{}, s.sqlError("CreateFlag", err, query, args)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return model.FraudFlag{}, s.sqlError("CreateFlag", err, query, args)
	}
	return flag, nil
}

func (s *SQLiteDB) GetFlag(ctx context.Context, id uuid.UUID) (model.FraudFlag, error) {
	query, args, err := s.sqlb.Select(flagColumns...).From("fraud_flags").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return model.FraudFlag{}, s.sqlError("GetFlag", err, query, args)
	}
	flag, err := scanSQLiteFlag(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
		}
		return model.FraudFlag{}, s.sqlError("GetFlag", err, query, args)
	}
	return flag, nil
}

func (s *SQLiteDB) ListFlags(ctx context.Context, filter model.FlagFilter) ([]model.FraudFlag, error) {
	query, args, err := flagWhere(s.sqlb.Select(flagColumns...).From("fraud_flags"), filter).ToSql()
	if err != nil {
		return nil, s.sqlError("ListFlags", err, query, args)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.sqlError("ListFlags", err, query, args)
	}
	defer rows.Close()
	flags := []model.FraudFlag{}
	for rows.Next() {
		flag, err := scanSQLiteFlag(rows)
		if err != nil {
			return nil, model.WrapInfra("ListFlags", err)
		}
		flags = append(flags, flag)
	}
	return flags, model.WrapInfra("ListFlags", rows.Err())
}

func (s *SQLiteDB) UpdateFlagStatus(ctx context.Context, id uuid.UUID, status model.FraudStatus, reviewer string, at time.Time) (model.FraudFlag, error) {
	query, args, err := s.sqlb.Update("fraud_flags").
		Set("status", string(status)).
		Set("reviewed_by", reviewer).
		Set("reviewed_at", micros(at)).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return model.FraudFlag{}, s.sqlError("UpdateFlagStatus", err, query, args)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.FraudFlag{}, s.sqlError("UpdateFlagStatus", err, query, args)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
	}
	return s.GetFlag(ctx, id)
}

// Пользователи интеграции

func (s *SQLiteDB) FindOrCreateExternalUser(ctx context.Context, brandID string, externalUserID string) (model.ExternalUser, error) {
	query, args, err := s.sqlb.Insert("external_users").
		Options("OR IGNORE").
		Columns("id", "brand_id", "external_user_id", "created_at").
		Values(uuid.NewString(), brandID, externalUserID, micros(s.clock.Now())).
		ToSql()
	if err != nil {
		return model.ExternalUser{}, s.sqlError("FindOrCreateExternalUser", err, query, args)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return model.ExternalUser{}, s.sqlError("FindOrCreateExternalUser", err, query, args)
	}
	user, err := s.FindExternalUser(ctx, brandID, externalUserID)
	if err != nil {
		return model.ExternalUser{}, err
	}
	if user == nil {
		return model.ExternalUser{}, model.WrapInfra("FindOrCreateExternalUser", fmt.Errorf("external user %s vanished after insert", externalUserID))
	}
	return *user, nil
}

func (s *SQLiteDB) FindExternalUser(ctx context.Context, brandID string, externalUserID string) (*model.ExternalUser, error) {
	query, args, err := s.sqlb.Select("id", "brand_id", "external_user_id", "created_at").
		From("external_users").
		Where(sq.Eq{"brand_id": brandID, "external_user_id": externalUserID}).
		ToSql()
	if err != nil {
		return nil, s.sqlError("FindExternalUser", err, query, args)
	}
	user := model.ExternalUser{}
	var created int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.BrandID, &user.ExternalUserID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.sqlError("FindExternalUser", err, query, args)
	}
	user.CreatedAt = fromMicros(created)
	return &user, nil
}

// Бренды и ключи

func (s *SQLiteDB) CreateBrand(ctx context.Context, brand model.Brand) (model.Brand, error) {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	brand.CreatedAt = s.clock.Now()
	query, args, err := s.sqlb.Insert("brands").
		Columns("id", "name", "is_active", "is_suspended", "created_at").
		Values(brand.ID, brand.Name, brand.IsActive, brand.IsSuspended, micros(brand.CreatedAt)).
		ToSql()
	if err != nil {
		return model.Brand{}, s.sqlError("CreateBrand", err, query, args)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUnique(err) {
			return model.Brand{}, model.NewValidationError("id", "brand already exists")
		}
		return model.Brand{}, s.sqlError("CreateBrand", err, query, args)
	}
	return brand, nil
}

func (s *SQLiteDB) GetBrand(ctx context.Context, id string) (model.Brand, error) {
	brand := model.Brand{}
	var created int64
	err := s.db.QueryRowContext(ctx, "SELECT id, name, is_active, is_suspended, created_at FROM brands WHERE id = ?", id).
		Scan(&brand.ID, &brand.Name, &brand.IsActive, &brand.IsSuspended, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Brand{}, model.NewNotFoundError("brand", id)
		}
		return model.Brand{}, s.sqlError("GetBrand", err, "SELECT brands", []any{id})
	}
	brand.CreatedAt = fromMicros(created)
	return brand, nil
}

func (s *SQLiteDB) SetBrandStatus(ctx context.Context, id string, active bool, suspended bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE brands SET is_active = ?, is_suspended = ? WHERE id = ?", active, suspended, id)
	if err != nil {
		return s.sqlError("SetBrandStatus", err, "UPDATE brands", []any{id})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError("brand", id)
	}
	return nil
}

func (s *SQLiteDB) CreateAPIKey(ctx context.Context, key model.BrandAPIKey) (model.BrandAPIKey, error) {
	key.ID = uuid.New()
	key.CreatedAt = s.clock.Now()
	key.IsActive = true
	query, args, err := s.sqlb.Insert("brand_api_keys").
		Columns("id", "brand_id", "name", "key_hash", "is_active", "created_at").
		Values(key.ID.String(), key.BrandID, key.Name, key.KeyHash, key.IsActive, micros(key.CreatedAt)).
		ToSql()
	if err != nil {
		return model.BrandAPIKey{}, s.sqlError("CreateAPIKey", err, query, args)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return model.BrandAPIKey{}, s.sqlError("CreateAPIKey", err, query, args)
	}
	return key, nil
}

func (s *SQLiteDB) GetAPIKeyByHash(ctx context.Context, hash string) (model.BrandAPIKey, error) {
	query, args, err := s.sqlb.Select(apiKeyColumns...).From("brand_api_keys").Where(sq.Eq{"key_hash": hash}).ToSql()
	if err != nil {
		return model.BrandAPIKey{}, s.sqlError("GetAPIKeyByHash", err, query, args)
	}
	key, err := scanSQLiteAPIKey(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BrandAPIKey{}, model.NewNotFoundError("api key", "")
		}
		return model.BrandAPIKey{}, s.sqlError("GetAPIKeyByHash", err, query, []any{"***"})
	}
	return key, nil
}

func (s *SQLiteDB) ListAPIKeys(ctx context.Context, brandID string) ([]model.BrandAPIKey, error) {
	query, args, err := s.sqlb.Select(apiKeyColumns...).
		From("brand_api_keys").
		Where(sq.Eq{"brand_id": brandID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, s.sqlError("ListAPIKeys", err, query, args)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.sqlError("ListAPIKeys", err, query, args)
	}
	defer rows.Close()
	keys := []model.BrandAPIKey{}
	for rows.Next() {
		key, err := scanSQLiteAPIKey(rows)
		if err != nil {
			return nil, model.WrapInfra("ListAPIKeys", err)
		}
		keys = append(keys, key)
	}
	return keys, model.WrapInfra("ListAPIKeys", rows.Err())
}

func (s *SQLiteDB) DisableAPIKey(ctx context.Context, brandID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE brand_api_keys SET is_active = 0 WHERE id = ? AND brand_id = ?", id.String(), brandID)
	if err != nil {
		return s.sqlError("DisableAPIKey", err, "UPDATE brand_api_keys", []any{id, brandID})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError("api key", id.String())
	}
	return nil
}

func (s *SQLiteDB) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE brand_api_keys SET last_used_at = ? WHERE id = ?", micros(at), id.String())
	return model.WrapInfra("TouchAPIKey", err)
}

// Сканирование

func scanSQLiteEntry(row rowScanner) (model.LedgerEntry, error) {
	var entry model.LedgerEntry
	var id, entryType, amount string
	var meta, key sql.NullString
	var created int64
	err := row.Scan(&id, &entry.BrandID, &entry.UserID, &entryType, &amount, &entry.Reason, &meta, &key, &created)
	if err != nil {
		return entry, err
	}
	if entry.ID, err = uuid.Parse(id); err != nil {
		return entry, err
	}
	entry.Type = model.EntryType(entryType)
	entry.IdempotencyKey = key.String
	entry.CreatedAt = fromMicros(created)
	if entry.Amount, err = decimal.NewFromString(amount); err != nil {
		return entry, err
	}
	if meta.Valid {
		if entry.Metadata, err = model.DecodeMetadata([]byte(meta.String)); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

func scanSQLiteRedemption(row rowScanner) (model.Redemption, error) {
	var r model.Redemption
	var id, points, status string
	var campaign, meta sql.NullString
	var created, updated int64
	err := row.Scan(&id, &r.BrandID, &r.UserID, &campaign, &points, &status, &meta, &created, &updated)
	if err != nil {
		return r, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return r, err
	}
	r.CampaignID = campaign.String
	r.Status = model.RedemptionStatus(status)
	r.CreatedAt = fromMicros(created)
	r.UpdatedAt = fromMicros(updated)
	if r.PointsUsed, err = decimal.NewFromString(points); err != nil {
		return r, err
	}
	if meta.Valid {
		if r.Metadata, err = model.DecodeMetadata([]byte(meta.String)); err != nil {
			return r, err
		}
	}
	return r, nil
}

func scanSQLiteFlag(row rowScanner) (model.FraudFlag, error) {
	var f model.FraudFlag
	var id, severity, status string
	var brand, details, reviewer sql.NullString
	var reviewedAt sql.NullInt64
	var created int64
	err := row.Scan(&id, &f.UserID, &brand, &severity, &f.Reason, &details, &status, &reviewer, &reviewedAt, &created)
	if err != nil {
		return f, err
	}
	if f.ID, err = uuid.Parse(id); err != nil {
		return f, err
	}
	f.BrandID = brand.String
	f.Severity = model.FraudSeverity(severity)
	f.Status = model.FraudStatus(status)
	f.ReviewedBy = reviewer.String
	if reviewedAt.Valid {
		t := fromMicros(reviewedAt.Int64)
		f.ReviewedAt = &t
	}
	if details.Valid {
		f.Details = decodeDetails([]byte(details.String))
	}
	f.CreatedAt = fromMicros(created)
	return f, nil
}

func scanSQLiteAPIKey(row rowScanner) (model.BrandAPIKey, error) {
	var k model.BrandAPIKey
	var id string
	var lastUsed sql.NullInt64
	var created int64
	err := row.Scan(&id, &k.BrandID, &k.Name, &k.KeyHash, &k.IsActive, &created, &lastUsed)
	if err != nil {
		return k, err
	}
	if k.ID, err = uuid.Parse(id); err != nil {
		return k, err
	}
	k.CreatedAt = fromMicros(created)
	if lastUsed.Valid {
		t := fromMicros(lastUsed.Int64)
		k.LastUsedAt = &t
	}
	return k, nil
}
