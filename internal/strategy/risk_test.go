package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExposureBuyBoundary(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, CheckExposure(cfg, Position{Net: 90}, Buy))
	require.NoError(t, CheckExposure(cfg, Position{Net: 50, PendingBuy: 40}, Buy))

	err := CheckExposure(cfg, Position{Net: 91}, Buy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuyLimit))
}

func TestCheckExposureSellBoundary(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, CheckExposure(cfg, Position{Net: -90}, Sell))

	err := CheckExposure(cfg, Position{Net: -60, PendingSell: 40}, Sell)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSellLimit))
}

func TestCheckExposureSidesIndependent(t *testing.T) {
	cfg := testConfig()
	pos := Position{Net: 100}
	assert.Error(t, CheckExposure(cfg, pos, Buy))
	assert.NoError(t, CheckExposure(cfg, pos, Sell))
}

func TestPositionApplyFill(t *testing.T) {
	var pos Position
	pos.ApplyFill(Sell, 10)
	pos.ApplyFill(Buy, 4)
	assert.Equal(t, int64(-6), pos.Net)
	pos.AddPending(Sell, 10)
	pos.AddPending(Buy, 20)
	assert.Equal(t, int64(10), pos.Pending(Sell))
	assert.Equal(t, int64(20), pos.Pending(Buy))
}
