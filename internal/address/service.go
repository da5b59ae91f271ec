package address

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/angelmondragon/storefront/pkg/validate"
)

type tokenSource interface {
	RequireToken() (string, error)
}

// Book is the remote address CRUD surface.
type Book interface {
	ListAddresses(ctx context.Context, token string) ([]types.Address, error)
	CreateAddress(ctx context.Context, token string, addr types.Address) (*types.Address, error)
	UpdateAddress(ctx context.Context, token string, addr types.Address) (*types.Address, error)
	DeleteAddress(ctx context.Context, token string, id int64) error
}

// Service manages the user's saved addresses and the one picked for checkout.
type Service interface {
	List(ctx context.Context) []types.Address
	Get(ctx context.Context, id int64) (*types.Address, error)
	Create(ctx context.Context, addr types.Address) (*types.Address, error)
	Update(ctx context.Context, addr types.Address) (*types.Address, error)
	Delete(ctx context.Context, id int64) error

	Select(ctx context.Context, id int64) (*types.Address, error)
	Selected() (types.Address, bool)
	ClearSelection()
}

type service struct {
	book    Book
	session tokenSource
	logg    *logger.Logger

	mu       sync.RWMutex
	selected *types.Address
}

// NewService builds the address service.
func NewService(book Book, session tokenSource, logg *logger.Logger) (Service, error) {
	if book == nil {
		return nil, fmt.Errorf("address book required")
	}
	if session == nil {
		return nil, fmt.Errorf("session required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{book: book, session: session, logg: logg}, nil
}

// List degrades to an empty slice when the user is logged out or the
// gateway fails.
func (s *service) List(ctx context.Context) []types.Address {
	token, err := s.session.RequireToken()
	if err != nil {
		return []types.Address{}
	}
	list, err := s.book.ListAddresses(ctx, token)
	if err != nil {
		s.logg.Error(ctx, "failed to list addresses", err)
		return []types.Address{}
	}
	if list == nil {
		list = []types.Address{}
	}
	return list
}

func (s *service) Get(ctx context.Context, id int64) (*types.Address, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	token, err := s.session.RequireToken()
	if err != nil {
		return nil, err
	}
	list, err := s.book.ListAddresses(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			found := list[i]
			return &found, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found").
		WithDetails(map[string]int64{"address_id": id})
}

func (s *service) Create(ctx context.Context, addr types.Address) (*types.Address, error) {
	addr = addr.Normalize()
	addr.ID = 0
	if err := validate.Struct(addr); err != nil {
		return nil, err
	}
	token, err := s.session.RequireToken()
	if err != nil {
		return nil, err
	}
	created, err := s.book.CreateAddress(ctx, token, addr)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "address_id", created.ID), "address created")
	return created, nil
}

func (s *service) Update(ctx context.Context, addr types.Address) (*types.Address, error) {
	if addr.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	addr = addr.Normalize()
	if err := validate.Struct(addr); err != nil {
		return nil, err
	}
	token, err := s.session.RequireToken()
	if err != nil {
		return nil, err
	}
	updated, err := s.book.UpdateAddress(ctx, token, addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.ID == updated.ID {
		copied := *updated
		s.selected = &copied
	}
	s.mu.Unlock()
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	token, err := s.session.RequireToken()
	if err != nil {
		return err
	}
	if err := s.book.DeleteAddress(ctx, token, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
	s.mu.Unlock()
	return nil
}

// Select pins a saved address as the delivery target for the next checkout.
func (s *service) Select(ctx context.Context, id int64) (*types.Address, error) {
	addr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	copied := *addr
	s.selected = &copied
	s.mu.Unlock()
	return addr, nil
}

func (s *service) Selected() (types.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return types.Address{}, false
	}
	return *s.selected, true
}

func (s *service) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}
