package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSagaRepo is the local durable store of checkout sagas and the retry queue.
type GormSagaRepo struct {
	DB *gorm.DB
}

func (r *GormSagaRepo) Migrate() error {
	return r.DB.AutoMigrate(&models.CheckoutSaga{}, &models.RetryTask{})
}

func (r *GormSagaRepo) CreateSaga(ctx context.Context, s *models.CheckoutSaga) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *GormSagaRepo) SaveSaga(ctx context.Context, s *models.CheckoutSaga) error {
	return r.DB.WithContext(ctx).Save(s).Error
}

func (r *GormSagaRepo) SagaByOrder(ctx context.Context, orderID int64) (*models.CheckoutSaga, error) {
	var s models.CheckoutSaga
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSagaRepo) ListSagas(ctx context.Context, state string, limit int) ([]models.CheckoutSaga, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Model(&models.CheckoutSaga{})
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var out []models.CheckoutSaga
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormSagaRepo) EnqueueTask(ctx context.Context, t *models.RetryTask) error {
	if t.Status == "" {
		t.Status = models.TaskPending
	}
	if t.NextRunAt.IsZero() {
		t.NextRunAt = time.Now().UTC()
	}
	return r.DB.WithContext(ctx).Create(t).Error
}

// ClaimDue returns pending tasks whose next run is due and pushes their
// next_run_at forward by lease so a concurrent poller skips them.
func (r *GormSagaRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.RetryTask, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []models.RetryTask
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? AND next_run_at <= ?", models.TaskPending, now).
			Order("next_run_at ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		ids := make([]uint, len(tasks))
		for i := range tasks {
			ids[i] = tasks[i].ID
		}
		return tx.Model(&models.RetryTask{}).
			Where("id IN ?", ids).
			Update("next_run_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *GormSagaRepo) SaveTask(ctx context.Context, t *models.RetryTask) error {
	return r.DB.WithContext(ctx).Save(t).Error
}

func (r *GormSagaRepo) ListTasks(ctx context.Context, status string, limit int) ([]models.RetryTask, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Model(&models.RetryTask{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.RetryTask
	if err := q.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
