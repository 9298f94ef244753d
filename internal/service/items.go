package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/erazemk/evidenca/internal/codes"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// NewItem is the input for registering an item.
type NewItem struct {
	Name         string `json:"name" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=2000"`
	Category     string `json:"category" validate:"max=100"`
	Quantity     *int   `json:"quantity" validate:"omitempty,min=0"`
	Status       string `json:"status" validate:"omitempty,oneof=active in-repair damaged lost retired"`
	Location     string `json:"location" validate:"max=200"`
	Brand        string `json:"brand" validate:"max=100"`
	Model        string `json:"model" validate:"max=100"`
	SerialNumber string `json:"serial_number" validate:"max=100"`
}

// Registration is the outcome of registering one item.
type Registration struct {
	Item     model.Item `json:"item"`
	Fallback bool       `json:"fallback"`
}

// Register validates and stores a new item with freshly allocated codes.
// actor is the user performing the change, nil for system writes.
func (s *Service) Register(ctx context.Context, in NewItem, actor *int64) (*Registration, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}

	var created *model.Item
	allocated, err := s.writeCodes(ctx, name, in.Category, func(tx *sql.Tx, c codes.Codes) error {
		item, err := store.CreateItem(ctx, tx, model.Item{
			Name:         name,
			Description:  strings.TrimSpace(in.Description),
			CategoryRaw:  strings.TrimSpace(in.Category),
			CategoryKey:  c.Category.Key,
			Quantity:     quantity,
			Status:       in.Status,
			Location:     strings.TrimSpace(in.Location),
			Brand:        strings.TrimSpace(in.Brand),
			Model:        strings.TrimSpace(in.Model),
			SerialNumber: strings.TrimSpace(in.SerialNumber),
			MnemonicCode: c.Mnemonic,
			NumericCode:  c.Numeric,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return err
		}

		item.ScanPayload = codes.Payload(*item)
		if err := store.SetScanPayload(ctx, tx, item.ID, item.ScanPayload); err != nil {
			return err
		}
		created = item
		return store.CreateMovement(ctx, tx, item.ID, actor, model.MovementRegistered,
			fmt.Sprintf("%s / %s", c.Mnemonic, c.Numeric))
	})
	if err != nil {
		return nil, fmt.Errorf("registering %q: %w", name, err)
	}

	return &Registration{Item: *created, Fallback: allocated.Fallback}, nil
}

// BulkFailure describes one rejected item of a bulk registration.
type BulkFailure struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BulkResult reports every item of a bulk registration.
type BulkResult struct {
	Registered []Registration `json:"registered"`
	Failed     []BulkFailure  `json:"failed"`
}

// RegisterBulk registers items one by one. A failing item does not stop the
// rest; the returned error combines every failure.
func (s *Service) RegisterBulk(ctx context.Context, items []NewItem, actor *int64) (BulkResult, error) {
	res := BulkResult{Registered: []Registration{}, Failed: []BulkFailure{}}
	var errs error
	for i, in := range items {
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}
		reg, err := s.Register(ctx, in, actor)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %d: %w", i, err))
			res.Failed = append(res.Failed, BulkFailure{Index: i, Name: in.Name, Error: err.Error()})
			continue
		}
		res.Registered = append(res.Registered, *reg)
	}
	return res, errs
}

// ItemUpdate changes descriptive fields. Nil fields are left alone. Codes
// are never changed here; see ReissueCodes.
type ItemUpdate struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	Category     *string `json:"category" validate:"omitempty,max=100"`
	Quantity     *int    `json:"quantity" validate:"omitempty,min=0"`
	Status       *string `json:"status" validate:"omitempty,oneof=active in-repair damaged lost retired"`
	Location     *string `json:"location" validate:"omitempty,max=200"`
	Brand        *string `json:"brand" validate:"omitempty,max=100"`
	Model        *string `json:"model" validate:"omitempty,max=100"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=100"`
}

// UpdateItem applies an update and records one movement per kind of change:
// status, location and everything else.
func (s *Service) UpdateItem(ctx context.Context, id int64, upd ItemUpdate, actor *int64) (*model.Item, error) {
	if err := Validate(upd); err != nil {
		return nil, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be blank", model.ErrValidation)
	}

	var updated *model.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return err
		}
		before := *item

		var changed []string
		set := func(field string, dst *string, v *string) {
			if v == nil {
				return
			}
			nv := strings.TrimSpace(*v)
			if nv != *dst {
				*dst = nv
				changed = append(changed, field)
			}
		}
		set("name", &item.Name, upd.Name)
		set("description", &item.Description, upd.Description)
		set("category", &item.CategoryRaw, upd.Category)
		set("brand", &item.Brand, upd.Brand)
		set("model", &item.Model, upd.Model)
		set("serial_number", &item.SerialNumber, upd.SerialNumber)
		if upd.Quantity != nil && *upd.Quantity != item.Quantity {
			item.Quantity = *upd.Quantity
			changed = append(changed, "quantity")
		}
		if upd.Status != nil {
			item.Status = *upd.Status
		}
		if upd.Location != nil {
			item.Location = strings.TrimSpace(*upd.Location)
		}

		if item.MnemonicCode != "" {
			item.ScanPayload = codes.Payload(*item)
		}
		if err := store.UpdateItem(ctx, tx, *item); err != nil {
			return err
		}

		if item.Status != before.Status {
			if err := store.CreateMovement(ctx, tx, id, actor, model.MovementStatusChanged,
				before.Status+" -> "+item.Status); err != nil {
				return err
			}
		}
		if item.Location != before.Location {
			if err := store.CreateMovement(ctx, tx, id, actor, model.MovementRelocated,
				before.Location+" -> "+item.Location); err != nil {
				return err
			}
		}
		if len(changed) > 0 {
			if err := store.CreateMovement(ctx, tx, id, actor, model.MovementUpdated,
				strings.Join(changed, ", ")); err != nil {
				return err
			}
		}

		updated, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("updating item %d: %w", id, err)
	}
	return updated, nil
}

// DeleteItem soft-deletes an item. Its codes are never issued again.
func (s *Service) DeleteItem(ctx context.Context, id int64, actor *int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := store.DeleteItem(ctx, tx, id); err != nil {
			return err
		}
		return store.CreateMovement(ctx, tx, id, actor, model.MovementDeleted, item.MnemonicCode)
	})
	if err != nil {
		return fmt.Errorf("deleting item %d: %w", id, err)
	}
	return nil
}

// ReissueCodes reclassifies an item from its stored category label and gives
// it new codes. The old codes are retired: reserved forever, no longer
// resolvable.
func (s *Service) ReissueCodes(ctx context.Context, id int64, actor *int64) (*Registration, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reissue(ctx, *item, actor)
}

func (s *Service) reissue(ctx context.Context, item model.Item, actor *int64) (*Registration, error) {
	label := item.CategoryRaw
	if label == "" {
		label = item.CategoryKey
	}

	var updated *model.Item
	allocated, err := s.writeCodes(ctx, item.Name, label, func(tx *sql.Tx, c codes.Codes) error {
		current, err := liveItem(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if err := store.RetireCodes(ctx, tx, current.ID, current.MnemonicCode, current.NumericCode); err != nil {
			return err
		}

		next := *current
		next.CategoryKey = c.Category.Key
		next.MnemonicCode = c.Mnemonic
		next.NumericCode = c.Numeric
		next.ScanPayload = codes.Payload(next)
		if err := store.SetItemCodes(ctx, tx, next.ID, next.CategoryKey, next.MnemonicCode, next.NumericCode, next.ScanPayload); err != nil {
			return err
		}

		details := "assigned " + c.Mnemonic
		if current.MnemonicCode != "" {
			details = current.MnemonicCode + " -> " + c.Mnemonic
		}
		if err := store.CreateMovement(ctx, tx, next.ID, actor, model.MovementCodesReissued, details); err != nil {
			return err
		}

		updated, err = store.GetItem(ctx, tx, next.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reissuing codes for item %d: %w", item.ID, err)
	}
	return &Registration{Item: *updated, Fallback: allocated.Fallback}, nil
}

// AssignMissingCodes gives codes to live items that have none, such as rows
// imported from an older database. It returns how many items were coded.
func (s *Service) AssignMissingCodes(ctx context.Context, actor *int64) (int, error) {
	items, err := store.ListItemsWithoutCodes(ctx, s.DB)
	if err != nil {
		return 0, err
	}

	var errs error
	n := 0
	for _, item := range items {
		if _, err := s.reissue(ctx, item, actor); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

func liveItem(ctx context.Context, db store.DBTX, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	return item, nil
}
