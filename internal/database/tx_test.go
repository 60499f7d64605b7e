package database

import (
	"context"
	"errors"
	"testing"

	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countSuppliers(t *testing.T, ctx context.Context, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, GetDB(ctx, db).Model(&models.Supplier{}).Count(&n).Error)
	return n
}

func TestRunInTx_CommitsAndRollsBack(t *testing.T) {
	db := NewTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		return GetDB(txCtx, db).Create(&models.Supplier{Name: "kept"}).Error
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := GetDB(txCtx, db).Create(&models.Supplier{Name: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), countSuppliers(t, ctx, db))
}

func TestRunInTx_NestedCallJoinsOuter(t *testing.T) {
	db := NewTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	err := tm.RunInTx(ctx, func(outer context.Context) error {
		err := tm.RunInTx(outer, func(inner context.Context) error {
			assert.Same(t, outer, inner)
			return GetDB(inner, db).Create(&models.Supplier{Name: "inner"}).Error
		})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), countSuppliers(t, outer, db))
		return errors.New("abort outer")
	})

	assert.Error(t, err)
	assert.Equal(t, int64(0), countSuppliers(t, ctx, db))
}
