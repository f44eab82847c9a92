package users

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/dbtest"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
)

type fixture struct {
	svc    *Service
	client *db.Client
	conn   *gorm.DB
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	outboxSvc, err := outbox.NewService(outbox.ServiceParams{Tx: client, Repository: outbox.NewRepository(conn)})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Tx:         client,
		Repository: NewRepository(conn),
		Outbox:     outboxSvc,
		JWT:        config.JWTConfig{Secret: "secret", Issuer: "pos-app", ExpirationMinutes: 5},
	})
	require.NoError(t, err)
	return fixture{svc: svc, client: client, conn: conn}
}

func outboxRows(t *testing.T, conn *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&rows).Error)
	return rows
}

func TestCreateOrGetCreatesCustomerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var first, second *models.User
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		u, err := f.svc.CreateOrGet(ctx, tx, "Jane@Example.com ")
		first = u
		return err
	}))
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		u, err := f.svc.CreateOrGet(ctx, tx, "jane@example.com")
		second = u
		return err
	}))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "jane@example.com", first.Email)
	assert.Equal(t, enums.RoleCustomer, first.Role)

	rows := outboxRows(t, f.conn)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventAuthSignUp, rows[0].EventType)
	assert.Equal(t, enums.ExchangeAuth, rows[0].Exchange)
	assert.Equal(t, "customer", rows[0].RoutingKey)
	assert.Equal(t, first.ID.String(), rows[0].AggregateID)

	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "jane@example.com", body["email"])
}

func TestCreateOrGetRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.svc.CreateOrGet(ctx, tx, "ghost@example.com"); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "later step failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.conn.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, outboxRows(t, f.conn))
}

func TestCreateOrGetRejectsInvalidEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.CreateOrGet(ctx, tx, "not-an-email")
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSignUpMintsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SignUp(ctx, "admin@example.com", enums.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, res.User.Role)

	claims, err := auth.ParseAccessToken(f.svc.jwt, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.True(t, claims.Principal().IsAdmin())

	rows := outboxRows(t, f.conn)
	require.Len(t, rows, 1)
	assert.Equal(t, "admin", rows[0].RoutingKey)

	_, err = f.svc.SignUp(ctx, "admin@example.com", enums.RoleCustomer)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = f.svc.SignUp(ctx, "x@example.com", "vendor")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
