package repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSagaRepo(t *testing.T) *GormSagaRepo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.OpenDialector(context.Background(), sqlite.Open("file:"+name+"?mode=memory&cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := &GormSagaRepo{DB: gdb}
	require.NoError(t, r.Migrate())
	return r
}

func TestSagaLifecycle(t *testing.T) {
	r := newSagaRepo(t)
	ctx := context.Background()

	s := &models.CheckoutSaga{
		ID:          "0b5a7f2e-1d6c-4c39-9d55-8f1d6a0e9c11",
		UserID:      3,
		OrderNumber: "ORD-20250102-030405",
		Payload:     `{"user_id":3}`,
		State:       models.SagaStarted,
	}
	require.NoError(t, r.CreateSaga(ctx, s))

	_, err := r.SagaByOrder(ctx, 77)
	assert.ErrorIs(t, err, ErrNotFound)

	s.OrderID = 77
	s.HeaderDone = true
	s.State = models.SagaPartial
	require.NoError(t, r.SaveSaga(ctx, s))

	got, err := r.SagaByOrder(ctx, 77)
	require.NoError(t, err)
	assert.True(t, got.HeaderDone)
	assert.False(t, got.ItemsDone)
	assert.Equal(t, `{"user_id":3}`, got.Payload)

	partial, err := r.ListSagas(ctx, models.SagaPartial, 10)
	require.NoError(t, err)
	require.Len(t, partial, 1)

	done, err := r.ListSagas(ctx, models.SagaCompleted, 10)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestClaimDue(t *testing.T) {
	r := newSagaRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	due := &models.RetryTask{Kind: models.TaskStockAdjust, OrderID: 1, Payload: `{"product_id":1,"delta":-2}`, NextRunAt: now.Add(-time.Minute)}
	later := &models.RetryTask{Kind: models.TaskCartClear, OrderID: 1, Payload: `{"user_id":3}`, NextRunAt: now.Add(time.Hour)}
	dead := &models.RetryTask{Kind: models.TaskCartClear, OrderID: 2, Payload: `{}`, Status: models.TaskDead, NextRunAt: now.Add(-time.Hour)}
	for _, task := range []*models.RetryTask{due, later, dead} {
		require.NoError(t, r.EnqueueTask(ctx, task))
	}
	assert.Equal(t, models.TaskPending, due.Status)

	claimed, err := r.ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	// leased: not claimable again until the lease runs out
	again, err := r.ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	again, err = r.ClaimDue(ctx, now.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, again, 1)

	task := again[0]
	task.Status = models.TaskDone
	require.NoError(t, r.SaveTask(ctx, &task))

	pending, err := r.ListTasks(ctx, models.TaskPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)
}
