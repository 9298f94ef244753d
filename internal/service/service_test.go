package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/erazemk/evidenca/internal/category"
	"github.com/erazemk/evidenca/internal/codes"
	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/search"
	"github.com/erazemk/evidenca/internal/store"
)

var fixedNow = time.Date(2025, 9, 15, 9, 26, 53, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := New(db.NewTestDB(t), category.Default(), metrics.New(reg))
	s.Now = func() time.Time { return fixedNow }
	s.Intn = func(int) int { return 0 }
	return s, reg
}

func register(t *testing.T, s *Service, name, cat string) model.Item {
	t.Helper()
	reg, err := s.Register(context.Background(), NewItem{Name: name, Category: cat}, nil)
	require.NoError(t, err)
	return reg.Item
}

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestRegisterSequentialMnemonics(t *testing.T) {
	s, reg := newTestService(t)
	ctx := context.Background()

	first := register(t, s, "Mouse Logitech", "Mouse")
	second := register(t, s, "Mouse Dell", "mouse óptico")

	assert.Equal(t, "MOUS-001", first.MnemonicCode)
	assert.Equal(t, "MOUS-002", second.MnemonicCode)
	assert.Equal(t, "mouse", second.CategoryKey)
	assert.Equal(t, "mouse óptico", second.CategoryRaw)
	assert.Equal(t, 1, first.Quantity)
	assert.Equal(t, model.ItemStatusActive, first.Status)

	for _, item := range []model.Item{first, second} {
		assert.Len(t, item.NumericCode, 13)
		assert.True(t, strings.HasPrefix(item.NumericCode, "15092653"), item.NumericCode)
		assert.True(t, codes.ValidNumeric(item.NumericCode), item.NumericCode)
	}
	assert.NotEqual(t, first.NumericCode, second.NumericCode)
	assert.Equal(t, "ITEM:1|MOUS-001|Mouse Logitech|mouse", first.ScanPayload)

	stored, err := s.GetItem(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ScanPayload, stored.ScanPayload)

	history, err := s.History(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.MovementRegistered, history[0].Action)
	assert.Contains(t, history[0].Details, "MOUS-001")

	assert.Equal(t, 2.0, gathered(t, reg, "evidenca_code_allocations_total"))
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	negative := -1
	cases := map[string]NewItem{
		"empty name":     {Name: ""},
		"blank name":     {Name: "   "},
		"bad status":     {Name: "Mesa", Status: "broken"},
		"negative count": {Name: "Mesa", Quantity: &negative},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register(ctx, in, nil)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
}

func TestRegisterUnknownCategoryIsOther(t *testing.T) {
	s, _ := newTestService(t)

	item := register(t, s, "Extintor", "segurança")
	assert.Equal(t, "other", item.CategoryKey)
	assert.Equal(t, "OUTR-001", item.MnemonicCode)
	assert.True(t, strings.HasPrefix(item.NumericCode, "99"))
}

// rejectRegularCodes makes every insert of a non-fallback code fail the way
// a concurrent writer holding the same code would.
const rejectRegularCodes = `
CREATE TRIGGER reject_regular_codes BEFORE INSERT ON items
WHEN NEW.mnemonic_code NOT GLOB 'ITEM-*'
BEGIN
    SELECT RAISE(ABORT, 'UNIQUE constraint failed: items.mnemonic_code');
END`

func TestRegisterFallsBackAfterConflicts(t *testing.T) {
	s, reg := newTestService(t)
	ctx := context.Background()

	// The first fallback candidate is already taken.
	_, err := store.CreateItem(ctx, s.DB, model.Item{
		Name:         "Seeded",
		CategoryKey:  "other",
		MnemonicCode: codes.FallbackCode(fixedNow, 100),
	})
	require.NoError(t, err)
	_, err = s.DB.Exec(rejectRegularCodes)
	require.NoError(t, err)

	res, err := s.Register(ctx, NewItem{Name: "Mouse", Category: "mouse"}, nil)
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, codes.FallbackCode(fixedNow, 101), res.Item.MnemonicCode)
	assert.Equal(t, res.Item.MnemonicCode, res.Item.NumericCode)
	assert.Equal(t, "mouse", res.Item.CategoryKey)
	assert.Equal(t, float64(MaxWriteAttempts-1), gathered(t, reg, "evidenca_code_write_conflicts_total"))
}

func TestRegisterGivesUpWhenEveryWriteConflicts(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.DB.Exec(`
CREATE TRIGGER reject_all BEFORE INSERT ON items
BEGIN
    SELECT RAISE(ABORT, 'UNIQUE constraint failed: items.numeric_code');
END`)
	require.NoError(t, err)

	_, err = s.Register(context.Background(), NewItem{Name: "Mouse", Category: "mouse"}, nil)
	assert.ErrorIs(t, err, model.ErrCodeConflict)
}

func TestRegisterBulk(t *testing.T) {
	s, _ := newTestService(t)

	res, err := s.RegisterBulk(context.Background(), []NewItem{
		{Name: "Cadeira gamer", Category: "Cadeira"},
		{Name: ""},
		{Name: "Mesa", Status: "broken"},
		{Name: "Cadeira fixa", Category: "cadeira"},
	}, nil)

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, model.ErrValidation)

	require.Len(t, res.Registered, 2)
	assert.Equal(t, "CADE-001", res.Registered[0].Item.MnemonicCode)
	assert.Equal(t, "CADE-002", res.Registered[1].Item.MnemonicCode)

	require.Len(t, res.Failed, 2)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.Equal(t, 2, res.Failed[1].Index)
	assert.Equal(t, "Mesa", res.Failed[1].Name)
}

func TestRegisterBulkAllValid(t *testing.T) {
	s, _ := newTestService(t)

	res, err := s.RegisterBulk(context.Background(), []NewItem{{Name: "A"}, {Name: "B"}}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Registered, 2)
	assert.Empty(t, res.Failed)
}

func TestUpdateItemRecordsMovements(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, NewItem{Name: "Monitor", Category: "monitor", Location: "Sala 1"}, nil)
	require.NoError(t, err)
	id := reg.Item.ID

	name := "Monitor LG 24"
	status := model.ItemStatusDamaged
	location := "TI"
	brand := "LG"
	updated, err := s.UpdateItem(ctx, id, ItemUpdate{Name: &name, Status: &status, Location: &location, Brand: &brand}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Monitor LG 24", updated.Name)
	assert.Equal(t, model.ItemStatusDamaged, updated.Status)
	assert.Equal(t, "TI", updated.Location)
	assert.Equal(t, "MONI-001", updated.MnemonicCode, "codes must not change on update")
	assert.Equal(t, "ITEM:1|MONI-001|Monitor LG 24|monitor", updated.ScanPayload)

	history, err := s.History(ctx, id)
	require.NoError(t, err)
	var actions []string
	for _, m := range history {
		actions = append(actions, m.Action)
	}
	assert.Equal(t, []string{
		model.MovementUpdated,
		model.MovementRelocated,
		model.MovementStatusChanged,
		model.MovementRegistered,
	}, actions)
	assert.Equal(t, "Sala 1 -> TI", history[1].Details)
	assert.Equal(t, "name, brand", history[0].Details)

	// A no-op update records nothing.
	_, err = s.UpdateItem(ctx, id, ItemUpdate{Location: &location}, nil)
	require.NoError(t, err)
	history, _ = s.History(ctx, id)
	assert.Len(t, history, 4)
}

func TestUpdateItemErrors(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	item := register(t, s, "Mesa", "mesa")

	blank := "  "
	_, err := s.UpdateItem(ctx, item.ID, ItemUpdate{Name: &blank}, nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	bad := "broken"
	_, err = s.UpdateItem(ctx, item.ID, ItemUpdate{Status: &bad}, nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.UpdateItem(ctx, 999, ItemUpdate{}, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteItemKeepsCodesReserved(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first := register(t, s, "Mouse", "mouse")
	require.NoError(t, s.DeleteItem(ctx, first.ID, nil))

	_, err := s.GetItem(ctx, first.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.DeleteItem(ctx, first.ID, nil), model.ErrNotFound)

	match, err := s.ByCode(ctx, "MOUS-001")
	require.NoError(t, err)
	assert.True(t, match.Empty())

	next := register(t, s, "Mouse novo", "mouse")
	assert.Equal(t, "MOUS-002", next.MnemonicCode)

	history, err := s.History(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MovementDeleted, history[0].Action)
}

func TestReissueCodes(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	item := register(t, s, "Notebook Dell", "notebook")
	require.Equal(t, "NOTE-001", item.MnemonicCode)

	cat := "Monitor"
	_, err := s.UpdateItem(ctx, item.ID, ItemUpdate{Category: &cat}, nil)
	require.NoError(t, err)

	res, err := s.ReissueCodes(ctx, item.ID, nil)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "monitor", res.Item.CategoryKey)
	assert.Equal(t, "MONI-001", res.Item.MnemonicCode)
	assert.True(t, codes.ValidNumeric(res.Item.NumericCode))
	assert.Equal(t, "ITEM:1|MONI-001|Notebook Dell|monitor", res.Item.ScanPayload)

	retired, err := s.RetiredCodes(ctx, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{item.MnemonicCode, item.NumericCode}, retired)

	// Stale codes no longer resolve.
	match, err := s.ByCode(ctx, "NOTE-001")
	require.NoError(t, err)
	assert.True(t, match.Empty())

	// And are never issued again.
	next := register(t, s, "Notebook HP", "notebook")
	assert.Equal(t, "NOTE-002", next.MnemonicCode)

	_, err = s.ReissueCodes(ctx, 999, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAssignMissingCodes(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	legacy, err := store.CreateItem(ctx, s.DB, model.Item{Name: "Teclado antigo", CategoryKey: "teclado"})
	require.NoError(t, err)
	register(t, s, "Teclado novo", "keyboard")

	n, err := s.AssignMissingCodes(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetItem(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "TECL-002", got.MnemonicCode)
	assert.NotEmpty(t, got.ScanPayload)

	n, err = s.AssignMissingCodes(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetrieval(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	mouse, err := s.Register(ctx, NewItem{Name: "Mouse Logitech", Category: "Mouse", Brand: "Logitech"}, nil)
	require.NoError(t, err)
	_, err = s.Register(ctx, NewItem{Name: "Monitor LG", Category: "monitor", Brand: "LG"}, nil)
	require.NoError(t, err)
	_, err = s.Register(ctx, NewItem{Name: "Notebook Dell", Category: "notebook", Brand: "Dell"}, nil)
	require.NoError(t, err)

	t.Run("search conjunction", func(t *testing.T) {
		results, err := s.Search(ctx, "mouse logitech", search.Filters{}, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "MOUS-001", results[0].Item.MnemonicCode)

		none, err := s.Search(ctx, "mouse dell", search.Filters{}, 0)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("by code", func(t *testing.T) {
		exact, err := s.ByCode(ctx, "mous-001")
		require.NoError(t, err)
		require.NotNil(t, exact.Exact)
		assert.Equal(t, mouse.Item.ID, exact.Exact.ID)

		byNumeric, err := s.ByCode(ctx, mouse.Item.NumericCode)
		require.NoError(t, err)
		require.NotNil(t, byNumeric.Exact)

		partial, err := s.ByCode(ctx, "MO")
		require.NoError(t, err)
		assert.Nil(t, partial.Exact)
		require.Len(t, partial.Partial, 2)
		assert.Equal(t, "MONI-001", partial.Partial[0].MnemonicCode)
	})

	t.Run("suggest", func(t *testing.T) {
		got, err := s.Suggest(ctx, "mo", 0)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Monitor LG", "Mouse Logitech", "monitor", "mouse"}, got)

		short, err := s.Suggest(ctx, "m", 0)
		require.NoError(t, err)
		assert.Empty(t, short)
	})

	t.Run("similar names", func(t *testing.T) {
		similar, err := s.SimilarNames(ctx, "Notbook Del", 0)
		require.NoError(t, err)
		require.NotEmpty(t, similar)
		assert.Equal(t, "Notebook Dell", similar[0].Item.Name)
	})

	t.Run("lookup", func(t *testing.T) {
		res, err := s.Lookup(ctx, "Notbook")
		require.NoError(t, err)
		assert.Empty(t, res.Results)
		require.NotEmpty(t, res.Similar)
		assert.Equal(t, "Notebook Dell", res.Similar[0].Item.Name)
	})

	t.Run("categories", func(t *testing.T) {
		cats, err := s.Categories(ctx)
		require.NoError(t, err)
		assert.Len(t, cats, s.Table.Len())
		for _, c := range cats {
			if c.Key == "mouse" {
				assert.Equal(t, 1, c.Items)
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalItems)
		assert.Equal(t, 3, stats.WithCodes)
	})
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPhotos(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	item := register(t, s, "Cadeira", "cadeira")

	_, _, err := s.Photo(ctx, item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	photo, err := s.SetPhoto(ctx, item.ID, bytes.NewReader(testPNG(t)), nil)
	require.NoError(t, err)
	assert.Equal(t, 40, photo.Width)

	data, mime, err := s.Photo(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, photo.Data, data)

	_, err = s.SetPhoto(ctx, item.ID, strings.NewReader("not an image"), nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.SetPhoto(ctx, 999, bytes.NewReader(testPNG(t)), nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	history, _ := s.History(ctx, item.ID)
	assert.Equal(t, model.MovementPhotoAdded, history[0].Action)
}

func TestLabelQR(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	item := register(t, s, "Projetor Epson", "projetor")

	data, err := s.LabelQR(ctx, item.ID, 128)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = s.LabelQR(ctx, 999, 128)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCategoryTree(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	register(t, s, "Notebook Dell", "notebook")
	register(t, s, "Mouse Gamer", "mouse sem fio")
	register(t, s, "Laptop Lenovo", "laptop")
	register(t, s, "Mouse", "mouse")

	tree, err := s.CategoryTree(ctx, "")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "mouse", tree[0].Category)
	assert.Equal(t, 2, tree[0].Count)
	assert.Equal(t, "Mouse", tree[0].Items[0].Name)
	assert.Equal(t, "Mouse Gamer", tree[0].Items[1].Name)
	assert.Equal(t, "notebook", tree[1].Category)
	assert.Equal(t, "Laptop Lenovo", tree[1].Items[0].Name)

	// The raw label matches even when the key does not.
	tree, err = s.CategoryTree(ctx, "lap")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, 1, tree[0].Count)
	assert.Equal(t, "Laptop Lenovo", tree[0].Items[0].Name)

	tree, err = s.CategoryTree(ctx, "cadeira")
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}
