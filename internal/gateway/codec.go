package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/store"
)

// encodeState serialises every state key before anything is written, so a
// serialisation failure never leaves a partial write behind.
func encodeState(st model.State) ([]store.Entry, error) {
	c := st.Clone()
	values := []struct {
		key string
		v   any
	}{
		{KeyOrders, c.Orders},
		{KeyCounter, c.Counter},
		{KeyDishes, c.Dishes},
		{KeyDrinks, c.Drinks},
	}

	entries := make([]store.Entry, 0, len(values)+1)
	for _, kv := range values {
		data, err := json.Marshal(kv.v)
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", model.NewStorageError("encode", kv.key, err))
		}
		entries = append(entries, store.Entry{Key: kv.key, Value: data})
	}
	return entries, nil
}

// decodeInto unmarshals data into a fresh value of v's type and only
// assigns it on success.
func decodeInto(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}
	if orders, ok := fresh.Interface().(*[]model.Order); ok {
		if err := validateOrders(*orders); err != nil {
			return err
		}
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// decodeEnvelope parses and validates a stored envelope.
func decodeEnvelope(data []byte) (model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Envelope{}, model.NewMalformedError(KeyEnvelope, err)
	}
	if env.DeviceID == "" {
		return model.Envelope{}, model.NewMalformedError(KeyEnvelope, errors.New("missing deviceId"))
	}
	if env.Timestamp <= 0 {
		return model.Envelope{}, model.NewMalformedError(KeyEnvelope, errors.New("missing timestamp"))
	}
	if err := validateOrders(env.Orders); err != nil {
		return model.Envelope{}, model.NewMalformedError(KeyEnvelope, err)
	}
	return env, nil
}

func validateOrders(orders []model.Order) error {
	seen := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o.ID <= 0 {
			return fmt.Errorf("order id %d out of range", o.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate order id %d", o.ID)
		}
		seen[o.ID] = true
		if !o.Status.Valid() {
			return fmt.Errorf("order %d: unknown status %q", o.ID, o.Status)
		}
	}
	return nil
}
