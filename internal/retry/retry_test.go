package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"vouchers/internal/config"
	"vouchers/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(3), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(3), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})

	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryBusinessOutcomes(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(5), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return model.NewVoucherError(model.ErrVoucherSoldOut, "LAST")
	})

	assert.ErrorIs(t, err, model.ErrVoucherSoldOut)
	assert.Equal(t, 1, calls)
}

func TestDo_DoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), testPolicy(5), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_SingleAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(1), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, testPolicy(5), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{MaxAttempts: 4, InitialInterval: 10 * time.Millisecond})

	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 200*time.Millisecond, p.MaxInterval)
}
