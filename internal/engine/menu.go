package engine

import (
	"context"
	"fmt"

	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/notify"
)

// AddDish appends a dish to the menu.
func (e *Engine) AddDish(ctx context.Context, name string) error {
	return e.editMenu(ctx, model.MenuDishes, name, model.AddMenuItem)
}

// AddDrink appends a drink to the menu.
func (e *Engine) AddDrink(ctx context.Context, name string) error {
	return e.editMenu(ctx, model.MenuDrinks, name, model.AddMenuItem)
}

// RemoveDish removes a dish from the menu.
func (e *Engine) RemoveDish(ctx context.Context, name string) error {
	return e.editMenu(ctx, model.MenuDishes, name, model.RemoveMenuItem)
}

// RemoveDrink removes a drink from the menu.
func (e *Engine) RemoveDrink(ctx context.Context, name string) error {
	return e.editMenu(ctx, model.MenuDrinks, name, model.RemoveMenuItem)
}

type menuEdit func(kind model.MenuKind, list []string, name string) ([]string, string, error)

// editMenu applies one add or remove to a menu list, then saves and
// publishes the whole state. Orders already placed keep their items.
func (e *Engine) editMenu(ctx context.Context, kind model.MenuKind, name string, edit menuEdit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.usable(); err != nil {
		return err
	}

	list := &e.state.Dishes
	if kind == model.MenuDrinks {
		list = &e.state.Drinks
	}

	before := len(*list)
	updated, item, err := edit(kind, *list, name)
	if err != nil {
		e.warn(err)
		return err
	}
	*list = updated

	msg := menuMessage(kind, item, len(updated) > before)
	e.logger.Info("menu changed", "kind", kind, "item", item, "size", len(updated))

	saveErr := e.save(ctx)
	e.emit(Event{Type: EventMenuChanged, Device: e.deviceID, Message: msg})
	e.notifier.Notify(msg, notify.SeveritySuccess)
	return saveErr
}

func menuMessage(kind model.MenuKind, item string, added bool) string {
	switch {
	case kind == model.MenuDishes && added:
		return fmt.Sprintf("Piatto %q aggiunto", item)
	case kind == model.MenuDishes:
		return fmt.Sprintf("Piatto %q rimosso", item)
	case added:
		return fmt.Sprintf("Bevanda %q aggiunta", item)
	default:
		return fmt.Sprintf("Bevanda %q rimossa", item)
	}
}
