package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ComposesAccents(t *testing.T) {
	decomposed := "Tiramisu\u0300"
	assert.Equal(t, "Tiramis\u00f9", Normalize("  "+decomposed+" "))

	_, _, err := AddMenuItem(MenuDishes, []string{"Tiramis\u00f9"}, decomposed)
	assert.True(t, IsValidationError(err), "decomposed spelling is a duplicate")
}

func TestAddMenuItem(t *testing.T) {
	list := []string{"Pizza Margherita"}

	out, name, err := AddMenuItem(MenuDishes, list, " Tiramisù ")
	require.NoError(t, err)
	assert.Equal(t, "Tiramisù", name)
	assert.Equal(t, []string{"Pizza Margherita", "Tiramisù"}, out)
	assert.Len(t, list, 1, "input list must not be modified")
}

func TestAddMenuItem_RejectsEmptyAndDuplicate(t *testing.T) {
	list := []string{"Tiramisù"}

	_, _, err := AddMenuItem(MenuDishes, list, "   ")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "Inserisci il nome del piatto", Message(err))

	_, _, err = AddMenuItem(MenuDishes, list, "Tiramisù")
	require.Error(t, err)
	assert.Equal(t, "Questo piatto esiste già", Message(err))

	_, _, err = AddMenuItem(MenuDrinks, []string{"Birra"}, "Birra")
	assert.Equal(t, "Questa bevanda esiste già", Message(err))
}

func TestRemoveMenuItem(t *testing.T) {
	list := []string{"Acqua Naturale", "Birra", "Caffè"}

	out, _, err := RemoveMenuItem(MenuDrinks, list, "Birra")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acqua Naturale", "Caffè"}, out)
	assert.Len(t, list, 3)

	_, _, err = RemoveMenuItem(MenuDrinks, list, "Grappa")
	assert.True(t, IsValidationError(err))
}

func TestValidateSubmission(t *testing.T) {
	err := ValidateSubmission(nil, nil)
	require.Error(t, err)
	assert.Equal(t, "Seleziona almeno un piatto o una bevanda", Message(err))

	assert.NoError(t, ValidateSubmission(nil, []string{"Birra"}))
	assert.NoError(t, ValidateSubmission([]string{"Pizza Margherita"}, nil))
}
