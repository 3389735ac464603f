package postgres_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/repository/postgres"
	"github.com/repolens/repolens/pkg/repository/testhelper"
	"github.com/repolens/repolens/pkg/utils/testutil"
)

func TestPostgres(t *testing.T) {
	dsn := testutil.GetEnvOrSkip(t, "TEST_POSTGRES_DSN")

	testhelper.TestAll(t, func(t *testing.T) interfaces.EntityRepository {
		client := gt.R1(postgres.New(context.Background(), dsn)).NoError(t)
		gt.NoError(t, client.Truncate(context.Background()))
		t.Cleanup(func() {
			_ = client.Close()
		})
		return client
	})
}
