package rewards

import (
	"encoding/json"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	model "github.com/glkeru/loyalty/rewards/internal/models"
)

// Часы журнала: время строго растет, точность - микросекунды (как у timestamptz)
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func listLimit(limit int) uint64 {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit+1 {
		return maxListLimit + 1
	}
	return uint64(limit)
}

var entryColumns = []string{"id", "brand_id", "user_id", "type", "amount", "reason", "metadata", "idempotency_key", "created_at"}

var redemptionColumns = []string{"id", "brand_id", "user_id", "campaign_id", "points_used", "status", "metadata", "created_at", "updated_at"}

var flagColumns = []string{"id", "user_id", "brand_id", "severity", "reason", "details", "status", "reviewed_by", "reviewed_at", "created_at"}

var apiKeyColumns = []string{"id", "brand_id", "name", "key_hash", "is_active", "created_at", "last_used_at"}

// Фильтры истории, общие для обоих диалектов. Время курсора передается уже в формате диалекта
func historyWhere(b sq.SelectBuilder, q model.HistoryQuery, before any) sq.SelectBuilder {
	b = b.Where(sq.Eq{"brand_id": q.BrandID})
	if q.UserID != "" {
		b = b.Where(sq.Eq{"user_id": q.UserID})
	}
	if before != nil {
		b = b.Where(sq.Lt{"created_at": before})
	}
	if q.Type != "" {
		b = b.Where(sq.Eq{"type": string(q.Type)})
	}
	if q.Reason != "" {
		b = b.Where(sq.Eq{"reason": q.Reason})
	}
	return b.OrderBy("created_at DESC").Limit(listLimit(q.Limit))
}

func redemptionWhere(b sq.SelectBuilder, f model.RedemptionFilter) sq.SelectBuilder {
	b = b.Where(sq.Eq{"brand_id": f.BrandID})
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	b = b.OrderBy("created_at DESC").Limit(listLimit(f.Limit))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func flagWhere(b sq.SelectBuilder, f model.FlagFilter) sq.SelectBuilder {
	if f.BrandID != "" {
		b = b.Where(sq.Eq{"brand_id": f.BrandID})
	}
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	b = b.OrderBy("created_at DESC").Limit(listLimit(f.Limit))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func encodeDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	return json.Marshal(details)
}

func decodeDetails(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	details := map[string]any{}
	if err := json.Unmarshal(b, &details); err != nil {
		return nil
	}
	return details
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
