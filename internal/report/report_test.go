package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/comande/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	created := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{
			ID:        1,
			Table:     "Tavolo 5",
			Dishes:    []string{"Pizza Margherita", "Insalata Mista"},
			Drinks:    []string{"Birra"},
			CreatedAt: created,
			Status:    model.StatusServed,
			DeviceID:  "device-a",

			StatusUpdatedBy: "device-b",
			StatusUpdatedAt: created.Add(11 * time.Second),
		},
		{
			ID:        2,
			Table:     "Terrazza",
			Drinks:    []string{"Caffè"},
			CreatedAt: created.Add(time.Minute),
			Status:    model.StatusPending,
			DeviceID:  "device-b",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, orders))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(Sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{
		"1", "Tavolo 5", "Pizza Margherita, Insalata Mista", "Birra", "Servito",
		"2024-03-01 12:00:00", "device-a", "device-b", "2024-03-01 12:00:11",
	}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 7)
	assert.Equal(t, []string{
		"2", "Terrazza", "", "Caffè", "In Attesa",
		"2024-03-01 12:01:00", "device-b",
	}, rows[2][:7])
	for _, cell := range rows[2][7:] {
		assert.Empty(t, cell, "never-updated orders have no provenance")
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(Sheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
