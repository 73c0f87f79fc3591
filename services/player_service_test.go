package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/persistence"
	"github.com/wfunc/diceserver/persistence/mocks"
	"go.uber.org/mock/gomock"
)

func TestCheckEntry(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	store.SeedProfile("1", decimal.NewFromInt(50), 0)
	store.SeedProfile("2", decimal.NewFromInt(10), 0)
	svc := NewPlayerService(store)

	require.NoError(t, svc.CheckEntry(ctx, []models.PlayerID{"1"}, decimal.NewFromInt(20)))
	assert.ErrorIs(t, svc.CheckEntry(ctx, []models.PlayerID{"1", "2"}, decimal.NewFromInt(20)), ErrInsufficientBalance)
	assert.ErrorIs(t, svc.CheckEntry(ctx, []models.PlayerID{"3"}, decimal.NewFromInt(20)), persistence.ErrRecordNotFound)
	assert.NoError(t, svc.CheckEntry(ctx, []models.PlayerID{"3"}, decimal.Zero), "free tables skip the lookup")

	balance, _ := store.FindBalance(ctx, "1")
	assert.True(t, decimal.NewFromInt(50).Equal(balance), "check must not charge")
}

func TestChargeEntry_ContinuesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	profiles := mocks.NewMockProfileStore(ctrl)
	amount := decimal.NewFromInt(20)

	gomock.InOrder(
		profiles.EXPECT().DeductEntryCost(gomock.Any(), models.PlayerID("1"), amount).Return(errors.New("conflict")),
		profiles.EXPECT().DeductEntryCost(gomock.Any(), models.PlayerID("2"), amount).Return(nil),
	)

	charged := NewPlayerService(profiles).ChargeEntry(context.Background(), "g1", []models.PlayerID{"1", "2"}, amount)
	assert.Equal(t, 1, charged)
}
