package store

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/model"
)

// txn binds the entity operations to a running transaction.
type txn struct {
	q sqlx.ExtContext
}

// todoRecord is the storage-layer shape of a todo row.
type todoRecord struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	Title            string    `db:"title"`
	Memo             string    `db:"memo"`
	Deadline         string    `db:"deadline"`
	IsCompleted      int       `db:"is_completed"`
	IsImportant      int       `db:"is_important"`
	IsLife           int       `db:"is_life"`
	Difficulty       int       `db:"difficulty"`
	EstimatedMinutes int       `db:"estimated_minutes"`
	TagID            *string   `db:"tag_id"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func todoToRecord(t model.Todo) todoRecord {
	return todoRecord{
		ID:               t.ID,
		UserID:           t.UserID,
		Title:            t.Title,
		Memo:             t.Memo,
		Deadline:         t.Deadline,
		IsCompleted:      boolToInt(t.IsCompleted),
		IsImportant:      boolToInt(t.IsImportant),
		IsLife:           boolToInt(t.IsLife),
		Difficulty:       t.Difficulty,
		EstimatedMinutes: t.EstimatedMinutes,
		TagID:            t.TagID,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
}

func (r todoRecord) toModel() model.Todo {
	return model.Todo{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Memo:             r.Memo,
		Deadline:         r.Deadline,
		IsCompleted:      r.IsCompleted != 0,
		IsImportant:      r.IsImportant != 0,
		IsLife:           r.IsLife != 0,
		Difficulty:       r.Difficulty,
		EstimatedMinutes: r.EstimatedMinutes,
		TagID:            r.TagID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// tagRecord is the storage-layer shape of a tag row.
type tagRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func tagToRecord(t model.Tag) tagRecord {
	return tagRecord{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func (r tagRecord) toModel() model.Tag {
	return model.Tag{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Color:     r.Color,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// dailyStatRecord is the storage-layer shape of a daily_stats row. The tag
// breakdown is kept as a JSON document.
type dailyStatRecord struct {
	UserID            string    `db:"user_id"`
	Date              string    `db:"date"`
	ProductivityScore float64   `db:"productivity_score"`
	BalanceScore      float64   `db:"balance_score"`
	BalanceNarrative  string    `db:"balance_narrative"`
	TagCounts         string    `db:"tag_counts"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func dailyStatToRecord(s model.DailyStat) (dailyStatRecord, error) {
	counts := s.TagCounts
	if counts == nil {
		counts = []model.TagCount{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return dailyStatRecord{}, fmt.Errorf("marshaling tag counts for %s/%s: %w", s.UserID, s.Date, err)
	}
	return dailyStatRecord{
		UserID:            s.UserID,
		Date:              s.Date,
		ProductivityScore: s.ProductivityScore,
		BalanceScore:      s.BalanceScore,
		BalanceNarrative:  s.BalanceNarrative,
		TagCounts:         string(data),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}, nil
}

func (r dailyStatRecord) toModel() (model.DailyStat, error) {
	stat := model.DailyStat{
		UserID:            r.UserID,
		Date:              r.Date,
		ProductivityScore: r.ProductivityScore,
		BalanceScore:      r.BalanceScore,
		BalanceNarrative:  r.BalanceNarrative,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.TagCounts != "" {
		if err := json.Unmarshal([]byte(r.TagCounts), &stat.TagCounts); err != nil {
			return model.DailyStat{}, fmt.Errorf("unmarshaling tag counts for %s/%s: %w", r.UserID, r.Date, err)
		}
	}
	return stat, nil
}
