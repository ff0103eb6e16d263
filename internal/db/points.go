package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Хранилище Postgres
type PointsDB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	clock  *clock
	psql   sq.StatementBuilderType
}

// общий интерфейс пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ interf.Storage = (*PointsDB)(nil)

func NewPointsDB(ctx context.Context, cfg config.Database, logger *zap.Logger) (*PointsDB, error) {
	dsn, err := cfg.PostgresDSN()
	if err != nil {
		return nil, err
	}
	return NewPointsDBFromDSN(ctx, dsn, cfg.MaxConns, logger)
}

func NewPointsDBFromDSN(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (db *PointsDB, err error) {
	poolcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		poolcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolcfg)
	if err != nil {
		return nil, err
	}
	db = &PointsDB{
		pool:   pool,
		logger: logger,
		clock:  &clock{},
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	if err = db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// Создание таблиц
func (p *PointsDB) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			p.logger.Error("Schema error", zap.Error(err), zap.String("query", stmt))
			return model.WrapInfra("migrate", err)
		}
	}
	return nil
}

func (p *PointsDB) Ping(ctx context.Context) error {
	return model.WrapInfra("ping", p.pool.Ping(ctx))
}

func (p *PointsDB) Close() {
	p.pool.Close()
}

func (p *PointsDB) sqlError(op string, err error, sql string, args []any) error {
	p.logger.Error("SQL error",
		zap.Error(err),
		zap.String("service", op),
		zap.String("query", sql),
		zap.Any("args", args),
	)
	return model.WrapInfra(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Запись проводки
func (p *PointsDB) Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	return p.appendEntry(ctx, p.pool, entry)
}

func (p *PointsDB) appendEntry(ctx context.Context, q querier, entry model.LedgerEntry) (model.LedgerEntry, error) {
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
	entry.CreatedAt = p.clock.Now()

	sql, args, err := p.psql.Insert("ledger_entries").
		Columns(entryColumns...).
		Values(entry.ID, entry.BrandID, entry.UserID, string(entry.Type), entry.Amount.String(), entry.Reason, meta, nullString(entry.IdempotencyKey), entry.CreatedAt).
		ToSql()
	if err != nil {
		return model.LedgerEntry{}, p.sqlError("Append", err, sql, args)
	}
	_, err = q.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return model.LedgerEntry{}, model.NewValidationError("idempotencyKey", "already used")
		}
		return model.LedgerEntry{}, p.sqlError("Append", err, sql, args)
	}
	return entry, nil
}

// Итоги по счету
func (p *PointsDB) Summary(ctx context.Context, brandID string, userID string) (model.BalanceSummary, error) {
	return p.summary(ctx, p.pool, brandID, userID)
}

func (p *PointsDB) summary(ctx context.Context, q querier, brandID string, userID string) (model.BalanceSummary, error) {
	sql, args, err := p.psql.Select(
		"COALESCE(SUM(amount) FILTER (WHERE type = 'MINT'), 0)::text",
		"COALESCE(SUM(amount) FILTER (WHERE type = 'BURN'), 0)::text").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "user_id": userID}).
		ToSql()
	if err != nil {
		return model.BalanceSummary{}, p.sqlError("Summary", err, sql, args)
	}
	var minted, burned string
	err = q.QueryRow(ctx, sql, args...).Scan(&minted, &burned)
	if err != nil {
		return model.BalanceSummary{}, p.sqlError("Summary", err, sql, args)
	}
	summary := model.BalanceSummary{}
	if summary.Minted, err = decimal.NewFromString(minted); err != nil {
		return model.BalanceSummary{}, model.WrapInfra("Summary", err)
	}
	if summary.Burned, err = decimal.NewFromString(burned); err != nil {
		return model.BalanceSummary{}, model.WrapInfra("Summary", err)
	}
	return summary, nil
}

func (p *PointsDB) BrandSummary(ctx context.Context, brandID string) (model.BrandSummary, error) {
	summary := model.BrandSummary{BrandID: brandID}
	sql, args, err := p.psql.Select(
		"COALESCE(SUM(amount) FILTER (WHERE type = 'MINT'), 0)::text",
		"COALESCE(SUM(amount) FILTER (WHERE type = 'BURN'), 0)::text",
		"COUNT(DISTINCT user_id)").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID}).
		ToSql()
	if err != nil {
		return model.BrandSummary{}, p.sqlError("BrandSummary", err, sql, args)
	}
	var minted, burned string
	if err = p.pool.QueryRow(ctx, sql, args...).Scan(&minted, &burned, &summary.Accounts); err != nil {
		return model.BrandSummary{}, p.sqlError("BrandSummary", err, sql, args)
	}

	sql, args, err = p.psql.Select("COALESCE(SUM(points_used), 0)::text").
		From("redemptions").
		Where(sq.Eq{"brand_id": brandID, "status": string(model.RedemptionCompleted)}).
		ToSql()
	if err != nil {
		return model.BrandSummary{}, p.sqlError("BrandSummary", err, sql, args)
	}
	var redeemed string
	if err = p.pool.QueryRow(ctx, sql, args...).Scan(&redeemed); err != nil {
		return model.BrandSummary{}, p.sqlError("BrandSummary", err, sql, args)
	}

	if summary.TotalPointsIssued, err = decimal.NewFromString(minted); err != nil {
		return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
	}
	if summary.TotalPointsBurned, err = decimal.NewFromString(burned); err != nil {
		return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
	}
	if summary.TotalPointsRedeemed, err = decimal.NewFromString(redeemed); err != nil {
		return model.BrandSummary{}, model.WrapInfra("BrandSummary", err)
	}
	summary.OutstandingPoints = summary.TotalPointsIssued.Sub(summary.TotalPointsBurned)
	return summary, nil
}

// Кол-во начислений с момента since
func (p *PointsDB) CountMints(ctx context.Context, brandID string, userID string, since time.Time) (count int, err error) {
	sql, args, err := p.psql.Select("COUNT(*)").
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "user_id": userID, "type": string(model.MINT)}).
		Where(sq.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, p.sqlError("CountMints", err, sql, args)
	}
	err = p.pool.QueryRow(ctx, sql, args...).Scan(&count)
	if err != nil {
		return 0, p.sqlError("CountMints", err, sql, args)
	}
	return count, nil
}

// История проводок, по убыванию даты
func (p *PointsDB) History(ctx context.Context, query model.HistoryQuery) ([]model.LedgerEntry, error) {
	var before any
	if !query.Before.IsZero() {
		before = query.Before
	}
	sql, args, err := historyWhere(p.psql.Select(pgEntryColumns()...).From("ledger_entries"), query, before).ToSql()
	if err != nil {
		return nil, p.sqlError("History", err, sql, args)
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, p.sqlError("History", err, sql, args)
	}
	defer rows.Close()
	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, model.WrapInfra("History", err)
		}
		entries = append(entries, entry)
	}
	return entries, model.WrapInfra("History", rows.Err())
}

func (p *PointsDB) FindByIdempotencyKey(ctx context.Context, brandID string, key string) (*model.LedgerEntry, error) {
	return p.findByKey(ctx, p.pool, brandID, key)
}

func (p *PointsDB) findByKey(ctx context.Context, q querier, brandID string, key string) (*model.LedgerEntry, error) {
	sql, args, err := p.psql.Select(pgEntryColumns()...).
		From("ledger_entries").
		Where(sq.Eq{"brand_id": brandID, "idempotency_key": key}).
		ToSql()
	if err != nil {
		return nil, p.sqlError("FindByIdempotencyKey", err, sql, args)
	}
	entry, err := scanPgEntry(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.sqlError("FindByIdempotencyKey", err, sql, args)
	}
	return &entry, nil
}

// Транзакция с блокировкой строки счета
func (p *PointsDB) InAccountTx(ctx context.Context, brandID string, userID string, fn func(ctx context.Context, tx interf.AccountTx) error) (err error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return model.WrapInfra("InAccountTx", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.WrapInfra("InAccountTx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	// блокируем счет
	_, err = tx.Exec(ctx, "INSERT INTO point_accounts (brand_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", brandID, userID)
	if err != nil {
		return p.sqlError("InAccountTx", err, "INSERT INTO point_accounts", []any{brandID, userID})
	}
	var locked string
	err = tx.QueryRow(ctx, "SELECT user_id FROM point_accounts WHERE brand_id = $1 AND user_id = $2 FOR UPDATE", brandID, userID).Scan(&locked)
	if err != nil {
		return p.sqlError("InAccountTx", err, "SELECT point_accounts FOR UPDATE", []any{brandID, userID})
	}

	err = fn(ctx, &pgAccountTx{db: p, tx: tx, brandID: brandID, userID: userID})
	if err != nil {
		return err
	}
	err = tx.Commit(ctx)
	if err != nil {
		return model.WrapInfra("InAccountTx", err)
	}
	return nil
}

type pgAccountTx struct {
	db      *PointsDB
	tx      pgx.Tx
	brandID string
	userID  string
}

func (t *pgAccountTx) Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	entry.BrandID = t.brandID
	entry.UserID = t.userID
	return t.db.appendEntry(ctx, t.tx, entry)
}

func (t *pgAccountTx) Summary(ctx context.Context) (model.BalanceSummary, error) {
	return t.db.summary(ctx, t.tx, t.brandID, t.userID)
}

func (t *pgAccountTx) FindByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	return t.db.findByKey(ctx, t.tx, t.brandID, key)
}

func (t *pgAccountTx) CreateRedemption(ctx context.Context, redemption model.Redemption) (model.Redemption, error) {
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

	sql, args, err := t.db.psql.Insert("redemptions").
		Columns(redemptionColumns...).
		Values(redemption.ID, redemption.BrandID, redemption.UserID, nullString(redemption.CampaignID), redemption.PointsUsed.String(),
			string(redemption.Status), meta, redemption.CreatedAt, redemption.UpdatedAt).
		ToSql()
	if err != nil {
		return model.Redemption{}, t.db.sqlError("CreateRedemption", err, sql, args)
	}
	_, err = t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return model.Redemption{}, t.db.sqlError("CreateRedemption", err, sql, args)
	}
	return redemption, nil
}

// Чтение списания с блокировкой строки
func (t *pgAccountTx) GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return t.db.getRedemption(ctx, t.tx, id, true)
}

func (t *pgAccountTx) SetRedemptionStatus(ctx context.Context, id uuid.UUID, status model.RedemptionStatus) (model.Redemption, error) {
	sql, args, err := t.db.psql.Update("redemptions").
		Set("status", string(status)).
		Set("updated_at", t.db.clock.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Redemption{}, t.db.sqlError("SetRedemptionStatus", err, sql, args)
	}
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return model.Redemption{}, t.db.sqlError("SetRedemptionStatus", err, sql, args)
	}
	if tag.RowsAffected() == 0 {
		return model.Redemption{}, model.NewNotFoundError("redemption", id.String())
	}
	return t.db.getRedemption(ctx, t.tx, id, false)
}

func (p *PointsDB) GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return p.getRedemption(ctx, p.pool, id, false)
}

func (p *PointsDB) getRedemption(ctx context.Context, q querier, id uuid.UUID, lock bool) (model.Redemption, error) {
	b := p.psql.Select(pgRedemptionColumns()...).From("redemptions").Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return model.Redemption{}, p.sqlError("GetRedemption", err, sql, args)
	}
	redemption, err := scanPgRedemption(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Redemption{}, model.NewNotFoundError("redemption", id.String())
		}
		return model.Redemption{}, p.sqlError("GetRedemption", err, sql, args)
	}
	return redemption, nil
}

func (p *PointsDB) ListRedemptions(ctx context.Context, filter model.RedemptionFilter) ([]model.Redemption, error) {
	sql, args, err := redemptionWhere(p.psql.Select(pgRedemptionColumns()...).From("redemptions"), filter).ToSql()
	if err != nil {
		return nil, p.sqlError("ListRedemptions", err, sql, args)
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, p.sqlError("ListRedemptions", err, sql, args)
	}
	defer rows.Close()
	redemptions := []model.Redemption{}
	for rows.Next() {
		r, err := scanPgRedemption(rows)
		if err != nil {
			return nil, model.WrapInfra("ListRedemptions", err)
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, model.WrapInfra("ListRedemptions", rows.Err())
}

// Флаги мошенничества

func (p *PointsDB) CreateFlag(ctx context.Context, flag model.FraudFlag) (model.FraudFlag, error) {
	details, err := encodeDetails(flag.Details)
	if err != nil {
		return model.FraudFlag{}, model.NewValidationError("details", err.Error())
	}
	flag.ID = uuid.New()
	flag.CreatedAt = p.clock.Now()
	if flag.Status == "" {
		flag.Status = model.FlagPending
	}
	sql, args, err := p.psql.Insert("fraud_flags").
		Columns("id", "user_id", "brand_id", "severity", "reason", "details", "status", "created_at").
		Values(flag.ID, flag.UserID, nullString(flag.BrandID), string(flag.Severity), flag.Reason, details, string(flag.Status), flag.CreatedAt).
		ToSql()
	if err != nil {
		return model.FraudFlag{}, p.sqlError("CreateFlag", err, sql, args)
	}
	if _, err = p.pool.Exec(ctx, sql, args...); err != nil {
		return model.FraudFlag{}, p.sqlError("CreateFlag", err, sql, args)
	}
	return flag, nil
}

func (p *PointsDB) GetFlag(ctx context.Context, id uuid.UUID) (model.FraudFlag, error) {
	sql, args, err := p.psql.Select(flagColumns...).From("fraud_flags").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.FraudFlag{}, p.sqlError("GetFlag", err, sql, args)
	}
	flag, err := scanPgFlag(p.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
		}
		return model.FraudFlag{}, p.sqlError("GetFlag", err, sql, args)
	}
	return flag, nil
}

func (p *PointsDB) ListFlags(ctx context.Context, filter model.FlagFilter) ([]model.FraudFlag, error) {
	sql, args, err := flagWhere(p.psql.Select(flagColumns...).From("fraud_flags"), filter).ToSql()
	if err != nil {
		return nil, p.sqlError("ListFlags", err, sql, args)
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, p.sqlError("ListFlags", err, sql, args)
	}
	defer rows.Close()
	flags := []model.FraudFlag{}
	for rows.Next() {
		flag, err := scanPgFlag(rows)
		if err != nil {
			return nil, model.WrapInfra("ListFlags", err)
		}
		flags = append(flags, flag)
	}
	return flags, model.WrapInfra("ListFlags", rows.Err())
}

func (p *PointsDB) UpdateFlagStatus(ctx context.Context, id uuid.UUID, status model.FraudStatus, reviewer string, at time.Time) (model.FraudFlag, error) {
	sql, args, err := p.psql.Update("fraud_flags").
		Set("status", string(status)).
		Set("reviewed_by", reviewer).
		Set("reviewed_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.FraudFlag{}, p.sqlError("UpdateFlagStatus", err, sql, args)
	}
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return model.FraudFlag{}, p.sqlError("UpdateFlagStatus", err, sql, args)
	}
	if tag.RowsAffected() == 0 {
		return model.FraudFlag{}, model.NewNotFoundError("fraud flag", id.String())
	}
	return p.GetFlag(ctx, id)
}

// Пользователи интеграции

func (p *PointsDB) FindOrCreateExternalUser(ctx context.Context, brandID string, externalUserID string) (model.ExternalUser, error) {
	sql, args, err := p.psql.Insert("external_users").
		Columns("id", "brand_id", "external_user_id", "created_at").
		Values(uuid.NewString(), brandID, externalUserID, p.clock.Now()).
		Suffix("ON CONFLICT (brand_id, external_user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return model.ExternalUser{}, p.sqlError("FindOrCreateExternalUser", err, sql, args)
	}
	if _, err = p.pool.Exec(ctx, sql, args...); err != nil {
		return model.ExternalUser{}, p.sqlError("FindOrCreateExternalUser", err, sql, args)
	}
	user, err := p.FindExternalUser(ctx, brandID, externalUserID)
	if err != nil {
		return model.ExternalUser{}, err
	}
	if user == nil {
		return model.ExternalUser{}, model.WrapInfra("FindOrCreateExternalUser", fmt.Errorf("external user %s vanished after insert", externalUserID))
	}
	return *user, nil
}

func (p *PointsDB) FindExternalUser(ctx context.Context, brandID string, externalUserID string) (*model.ExternalUser, error) {
	sql, args, err := p.psql.Select("id", "brand_id", "external_user_id", "created_at").
		From("external_users").
		Where(sq.Eq{"brand_id": brandID, "external_user_id": externalUserID}).
		ToSql()
	if err != nil {
		return nil, p.sqlError("FindExternalUser", err, sql, args)
	}
	user := model.ExternalUser{}
	err = p.pool.QueryRow(ctx, sql, args...).Scan(&user.ID, &user.BrandID, &user.ExternalUserID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.sqlError("FindExternalUser", err, sql, args)
	}
	return &user, nil
}

// Бренды и ключи

func (p *PointsDB) CreateBrand(ctx context.Context, brand model.Brand) (model.Brand, error) {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	brand.CreatedAt = p.clock.Now()
	sql, args, err := p.psql.Insert("brands").
		Columns("id", "name", "is_active", "is_suspended", "created_at").
		Values(brand.ID, brand.Name, brand.IsActive, brand.IsSuspended, brand.CreatedAt).
		ToSql()
	if err != nil {
		return model.Brand{}, p.sqlError("CreateBrand", err, sql, args)
	}
	if _, err = p.pool.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Brand{}, model.NewValidationError("id", "brand already exists")
		}
		return model.Brand{}, p.sqlError("CreateBrand", err, sql, args)
	}
	return brand, nil
}

func (p *PointsDB) GetBrand(ctx context.Context, id string) (model.Brand, error) {
	brand := model.Brand{}
	err := p.pool.QueryRow(ctx, "SELECT id, name, is_active, is_suspended, created_at FROM brands WHERE id = $1", id).
		Scan(&brand.ID, &brand.Name, &brand.IsActive, &brand.IsSuspended, &brand.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Brand{}, model.NewNotFoundError("brand", id)
		}
		return model.Brand{}, p.sqlError("GetBrand", err, "SELECT brands", []any{id})
	}
	return brand, nil
}

func (p *PointsDB) SetBrandStatus(ctx context.Context, id string, active bool, suspended bool) error {
	sql, args, err := p.psql.Update("brands").
		Set("is_active", active).
		Set("is_suspended", suspended).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return p.sqlError("SetBrandStatus", err, sql, args)
	}
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return p.sqlError("SetBrandStatus", err, sql, args)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("brand", id)
	}
	return nil
}

func (p *PointsDB) CreateAPIKey(ctx context.Context, key model.BrandAPIKey) (model.BrandAPIKey, error) {
	key.ID = uuid.New()
	key.CreatedAt = p.clock.Now()
	key.IsActive = true
	sql, args, err := p.psql.Insert("brand_api_keys").
		Columns("id", "brand_id", "name", "key_hash", "is_active", "created_at").
		Values(key.ID, key.BrandID, key.Name, key.KeyHash, key.IsActive, key.CreatedAt).
		ToSql()
	if err != nil {
		return model.BrandAPIKey{}, p.sqlError("CreateAPIKey", err, sql, args)
	}
	if _, err = p.pool.Exec(ctx, sql, args...); err != nil {
		return model.BrandAPIKey{}, p.sqlError("CreateAPIKey", err, sql, args)
	}
	return key, nil
}

func (p *PointsDB) GetAPIKeyByHash(ctx context.Context, hash string) (model.BrandAPIKey, error) {
	sql, args, err := p.psql.Select(apiKeyColumns...).From("brand_api_keys").Where(sq.Eq{"key_hash": hash}).ToSql()
	if err != nil {
		return model.BrandAPIKey{}, p.sqlError("GetAPIKeyByHash", err, sql, args)
	}
	key, err := scanPgAPIKey(p.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BrandAPIKey{}, model.NewNotFoundError("api key", "")
		}
		return model.BrandAPIKey{}, p.sqlError("GetAPIKeyByHash", err, sql, []any{"***"})
	}
	return key, nil
}

func (p *PointsDB) ListAPIKeys(ctx context.Context, brandID string) ([]model.BrandAPIKey, error) {
	sql, args, err := p.psql.Select(apiKeyColumns...).
		From("brand_api_keys").
		Where(sq.Eq{"brand_id": brandID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, p.sqlError("ListAPIKeys", err, sql, args)
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, p.sqlError("ListAPIKeys", err, sql, args)
	}
	defer rows.Close()
	keys := []model.BrandAPIKey{}
	for rows.Next() {
		key, err := scanPgAPIKey(rows)
		if err != nil {
			return nil, model.WrapInfra("ListAPIKeys", err)
		}
		keys = append(keys, key)
	}
	return keys, model.WrapInfra("ListAPIKeys", rows.Err())
}

func (p *PointsDB) DisableAPIKey(ctx context.Context, brandID string, id uuid.UUID) error {
	sql, args, err := p.psql.Update("brand_api_keys").
		Set("is_active", false).
		Where(sq.Eq{"id": id, "brand_id": brandID}).
		ToSql()
	if err != nil {
		return p.sqlError("DisableAPIKey", err, sql, args)
	}
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return p.sqlError("DisableAPIKey", err, sql, args)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("api key", id.String())
	}
	return nil
}

func (p *PointsDB) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := p.pool.Exec(ctx, "UPDATE brand_api_keys SET last_used_at = $1 WHERE id = $2", at, id)
	return model.WrapInfra("TouchAPIKey", err)
}

// Сканирование строк

func pgEntryColumns() []string {
	cols := make([]string, len(entryColumns))
	copy(cols, entryColumns)
	cols[4] = "amount::text"
	return cols
}

func pgRedemptionColumns() []string {
	cols := make([]string, len(redemptionColumns))
	copy(cols, redemptionColumns)
	cols[4] = "points_used::text"
	return cols
}

func scanPgEntry(row pgx.Row) (model.LedgerEntry, error) {
	var entry model.LedgerEntry
	var entryType, amount string
	var meta []byte
	var key pgtype.Text
	err := row.Scan(&entry.ID, &entry.BrandID, &entry.UserID, &entryType, &amount, &entry.Reason, &meta, &key, &entry.CreatedAt)
	if err != nil {
		return entry, err
	}
	entry.Type = model.EntryType(entryType)
	entry.IdempotencyKey = key.String
	if entry.Amount, err = decimal.NewFromString(amount); err != nil {
		return entry, err
	}
	if entry.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return entry, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func scanPgRedemption(row pgx.Row) (model.Redemption, error) {
	var r model.Redemption
	var campaign pgtype.Text
	var points, status string
	var meta []byte
	err := row.Scan(&r.ID, &r.BrandID, &r.UserID, &campaign, &points, &status, &meta, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.CampaignID = campaign.String
	r.Status = model.RedemptionStatus(status)
	if r.PointsUsed, err = decimal.NewFromString(points); err != nil {
		return r, err
	}
	if r.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return r, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func scanPgFlag(row pgx.Row) (model.FraudFlag, error) {
	var f model.FraudFlag
	var brand, reviewer pgtype.Text
	var reviewedAt pgtype.Timestamptz
	var severity, status string
	var details []byte
	err := row.Scan(&f.ID, &f.UserID, &brand, &severity, &f.Reason, &details, &status, &reviewer, &reviewedAt, &f.CreatedAt)
	if err != nil {
		return f, err
	}
	f.BrandID = brand.String
	f.Severity = model.FraudSeverity(severity)
	f.Status = model.FraudStatus(status)
	f.ReviewedBy = reviewer.String
	if reviewedAt.Status == pgtype.Present {
		t := reviewedAt.Time.UTC()
		f.ReviewedAt = &t
	}
	f.Details = decodeDetails(details)
	f.CreatedAt = f.CreatedAt.UTC()
	return f, nil
}

func scanPgAPIKey(row pgx.Row) (model.BrandAPIKey, error) {
	var k model.BrandAPIKey
	var lastUsed pgtype.Timestamptz
	err := row.Scan(&k.ID, &k.BrandID, &k.Name, &k.KeyHash, &k.IsActive, &k.CreatedAt, &lastUsed)
	if err != nil {
		return k, err
	}
	if lastUsed.Status == pgtype.Present {
		t := lastUsed.Time.UTC()
		k.LastUsedAt = &t
	}
	k.CreatedAt = k.CreatedAt.UTC()
	return k, nil
}
