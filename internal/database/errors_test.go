package database_test

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resto-pos/internal/database"
	"resto-pos/internal/database/dbtest"
	"resto-pos/internal/database/models"
)

func TestIsDuplicateKeyOnUniqueOrderNumber(t *testing.T) {
	db := dbtest.Open(t)
	first := models.Order{OrderNumber: "ORD-AAAA0001", Status: models.OrderPending, PaymentStatus: models.PaymentUnpaid, DiscountType: models.DiscountPercentage}
	require.NoError(t, db.Create(&first).Error)

	again := models.Order{OrderNumber: "ORD-AAAA0001", Status: models.OrderPending, PaymentStatus: models.PaymentUnpaid, DiscountType: models.DiscountPercentage}
	err := db.Create(&again).Error
	require.Error(t, err)
	assert.True(t, database.IsDuplicateKey(err))
	assert.False(t, database.IsLockContention(err))
}

func TestErrorClassificationForPostgresCodes(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, database.IsDuplicateKey(wrap("23505")))
	assert.False(t, database.IsDuplicateKey(wrap("23503")))

	for _, code := range []string{"40001", "40P01", "55P03"} {
		assert.True(t, database.IsLockContention(wrap(code)), code)
	}
	assert.False(t, database.IsLockContention(wrap("23505")))
	assert.False(t, database.IsLockContention(fmt.Errorf("plain")))
	assert.False(t, database.IsDuplicateKey(nil))
}
