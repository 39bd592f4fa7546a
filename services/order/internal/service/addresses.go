package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

type AddressService struct {
	store AddressStore
}

func NewAddressService(store AddressStore) *AddressService {
	return &AddressService{store: store}
}

// List returns the user's addresses, primary first.
func (s *AddressService) List(ctx context.Context, sess session.Session) ([]models.Address, error) {
	list, err := s.store.ListAddresses(ctx, sess.UserID)
	if err != nil {
		return nil, upstream(err, "list addresses")
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].IsPrimary && !list[j].IsPrimary
	})
	return list, nil
}

func (s *AddressService) Primary(ctx context.Context, sess session.Session) (models.Address, error) {
	list, err := s.List(ctx, sess)
	if err != nil {
		return models.Address{}, err
	}
	if len(list) == 0 || !list[0].IsPrimary {
		return models.Address{}, fmt.Errorf("%w: no primary address", ErrNotFound)
	}
	return list[0], nil
}

// Owned returns the address when it belongs to the session user.
func (s *AddressService) Owned(ctx context.Context, sess session.Session, addressID int64) (models.Address, error) {
	list, err := s.store.ListAddresses(ctx, sess.UserID)
	if err != nil {
		return models.Address{}, upstream(err, "list addresses")
	}
	for _, a := range list {
		if a.ID == addressID {
			return a, nil
		}
	}
	return models.Address{}, fmt.Errorf("%w: address %d", ErrNotFound, addressID)
}

// SetPrimary clears the flag on every address of the user, then sets it on
// addressID, keeping at most one primary address.
func (s *AddressService) SetPrimary(ctx context.Context, sess session.Session, addressID int64) (models.Address, error) {
	l := logging.FromContext(ctx).With("user_id", sess.UserID, "address_id", addressID)

	a, err := s.Owned(ctx, sess, addressID)
	if err != nil {
		return models.Address{}, err
	}
	if a.IsPrimary {
		return a, nil
	}
	if err := s.store.ClearPrimary(ctx, sess.UserID); err != nil {
		l.Warn("set_primary_error", "step", "clear", "error", err)
		return models.Address{}, upstream(err, "clear primary address")
	}
	if err := s.store.MarkPrimary(ctx, sess.UserID, addressID); err != nil {
		l.Warn("set_primary_error", "step", "mark", "error", err)
		return models.Address{}, upstream(err, "set primary address")
	}
	a.IsPrimary = true
	l.Info("primary_address_set")
	return a, nil
}
