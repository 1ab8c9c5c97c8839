package model

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default menu lists seeded on cold start.
var (
	DefaultDishes = []string{
		"Pasta al Pomodoro",
		"Pizza Margherita",
		"Risotto ai Funghi",
		"Cotoletta alla Milanese",
		"Insalata Mista",
	}
	DefaultDrinks = []string{
		"Acqua Naturale",
		"Acqua Frizzante",
		"Vino Rosso",
		"Birra",
		"Caffè",
	}
)

// MenuKind selects one of the two menu lists.
type MenuKind string

const (
	MenuDishes MenuKind = "dishes"
	MenuDrinks MenuKind = "drinks"
)

// Normalize trims s and converts it to Unicode NFC so that visually equal
// labels compare equal regardless of how they were typed.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeAll normalises every entry and drops blanks, keeping order.
func NormalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := Normalize(it); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// AddMenuItem returns list with name appended. The name is normalised
// first; an empty name or one already present is a validation error.
func AddMenuItem(kind MenuKind, list []string, name string) ([]string, string, error) {
	n := Normalize(name)
	if n == "" {
		return list, n, NewValidationError(emptyItemMessage(kind))
	}
	if slices.Contains(list, n) {
		return list, n, NewValidationError(duplicateItemMessage(kind))
	}
	out := append(cloneStrings(list), n)
	return out, n, nil
}

// RemoveMenuItem returns list without name. Removing an item that is not
// on the list is a validation error.
func RemoveMenuItem(kind MenuKind, list []string, name string) ([]string, string, error) {
	n := Normalize(name)
	idx := slices.Index(list, n)
	if idx < 0 {
		return list, n, NewValidationError(missingItemMessage(kind, n))
	}
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out, n, nil
}

// ValidateSubmission checks a new order before any state is touched. The
// table label is free text and may be empty.
func ValidateSubmission(dishes, drinks []string) error {
	if len(dishes) == 0 && len(drinks) == 0 {
		return NewValidationError("Seleziona almeno un piatto o una bevanda")
	}
	return nil
}

func emptyItemMessage(kind MenuKind) string {
	if kind == MenuDrinks {
		return "Inserisci il nome della bevanda"
	}
	return "Inserisci il nome del piatto"
}

func duplicateItemMessage(kind MenuKind) string {
	if kind == MenuDrinks {
		return "Questa bevanda esiste già"
	}
	return "Questo piatto esiste già"
}

func missingItemMessage(kind MenuKind, name string) string {
	if kind == MenuDrinks {
		return "Bevanda \"" + name + "\" non presente nel menù"
	}
	return "Piatto \"" + name + "\" non presente nel menù"
}
