package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/types"
	"gorm.io/gorm"
)

// GormStore keeps applications in MySQL.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, id types.ApplicationID) (*types.Application, error) {
	var app types.Application
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, review.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return &app, nil
}

func (s *GormStore) CompareAndSet(ctx context.Context, id types.ApplicationID, expect types.Status, t types.Transition) (*types.Application, error) {
	res := s.db.WithContext(ctx).Model(&types.Application{}).
		Where("id = ? AND status = ?", string(id), string(expect)).
		Updates(t.Columns())
	if res.Error != nil {
		return nil, fmt.Errorf("update application %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, review.ErrStale
	}
	return s.Get(ctx, id)
}

func (s *GormStore) Insert(ctx context.Context, sub types.Submission) (*types.Application, error) {
	now := s.now().UTC()
	app := types.Application{
		ID:              types.ApplicationID(uuid.NewString()),
		DiscordID:       sub.DiscordID,
		DiscordUsername: sub.DiscordUsername,
		Score:           sub.Score,
		TotalQuestions:  sub.TotalQuestions,
		CorrectAnswers:  sub.CorrectAnswers,
		WrongAnswers:    sub.WrongAnswers,
		ConversationLog: sub.ConversationLog,
		Answers:         sub.Answers,
		Status:          types.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return &app, nil
}

func (s *GormStore) List(ctx context.Context, f types.ListFilter) ([]types.Application, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(pageSize(f.Limit)).Offset(f.Offset)
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var apps []types.Application
	if err := q.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (s *GormStore) Counts(ctx context.Context) (map[types.Status]int64, error) {
	var rows []struct {
		Status types.Status
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&types.Application{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	out := map[types.Status]int64{types.StatusPending: 0, types.StatusAccepted: 0, types.StatusRejected: 0}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
