package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/erazemk/evidenca/internal/imaging"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/render"
	"github.com/erazemk/evidenca/internal/store"
)

// SetPhoto normalizes an uploaded photo and attaches it to a live item.
func (s *Service) SetPhoto(ctx context.Context, id int64, r io.Reader, actor *int64) (*imaging.Photo, error) {
	photo, err := imaging.Process(r, s.Photos)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := liveItem(ctx, tx, id); err != nil {
			return err
		}
		if err := store.SetItemImage(ctx, tx, id, photo.Data, photo.MIME); err != nil {
			return err
		}
		return store.CreateMovement(ctx, tx, id, actor, model.MovementPhotoAdded,
			fmt.Sprintf("%dx%d", photo.Width, photo.Height))
	})
	if err != nil {
		return nil, fmt.Errorf("setting photo for item %d: %w", id, err)
	}
	return photo, nil
}

// Photo returns an item's photo and its MIME type, or model.ErrNotFound.
func (s *Service) Photo(ctx context.Context, id int64) ([]byte, string, error) {
	data, mime, err := store.GetItemImage(ctx, s.DB, id)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("photo for item %d: %w", id, model.ErrNotFound)
	}
	return data, mime, nil
}

// LabelQR renders an item's scan payload as a QR PNG of size pixels.
func (s *Service) LabelQR(ctx context.Context, id int64, size int) ([]byte, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ScanPayload == "" {
		return nil, fmt.Errorf("item %d has no codes: %w", id, model.ErrNotFound)
	}
	return render.QR(item.ScanPayload, size)
}
