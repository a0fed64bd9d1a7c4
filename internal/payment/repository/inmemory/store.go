package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tair/payment-reconciler/internal/payment/domain"
	userdomain "github.com/tair/payment-reconciler/internal/user/domain"
	"github.com/tair/payment-reconciler/pkg/database"
)

// Store keeps the ledger and the entitlement records in process memory.
// Transactions are serialized and staged; nothing is visible until commit.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	payments map[string]domain.PaymentRecord // by session id
	users    map[string]userdomain.User
	emails   map[string]string // email -> user id
	seq      uint64
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		payments: make(map[string]domain.PaymentRecord),
		users:    make(map[string]userdomain.User),
		emails:   make(map[string]string),
		now:      time.Now,
	}
}

type memTx struct {
	store    *Store
	payments []domain.PaymentRecord
	links    []userdomain.UserPayment
}

func (*memTx) Driver() string { return "memory" }

func (s *Store) unwrap(tx database.Tx) (*memTx, error) {
	mtx, ok := tx.(*memTx)
	if !ok || mtx.store != s {
		return nil, fmt.Errorf("%w: got %T", database.ErrForeignTx, tx)
	}
	return mtx, nil
}

// AddUser registers a user. Registration is owned elsewhere; this is the seam
// local runs and tests use to create accounts.
func (s *Store) AddUser(user userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if _, exists := s.emails[user.Email]; exists {
		return fmt.Errorf("email %s already registered", user.Email)
	}
	if user.Status == "" {
		user.Status = userdomain.StatusNotPaid
	}
	user.Payments = append([]userdomain.UserPayment(nil), user.Payments...)
	s.users[user.ID] = user
	s.emails[user.Email] = user.ID
	return nil
}

// WithinTransaction implements database.TxManager
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx database.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range tx.payments {
		s.payments[p.SessionID] = p
	}
	for _, link := range tx.links {
		user := s.users[link.UserID]
		s.seq++
		link.Seq = s.seq
		user.Status = userdomain.StatusPaid
		user.UpdatedAt = link.CreatedAt
		user.Payments = append(user.Payments, link)
		s.users[link.UserID] = user
	}
}

// FindBySessionID implements domain.PaymentRepository
func (s *Store) FindBySessionID(ctx context.Context, sessionID string) (*domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[sessionID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

// Insert implements domain.PaymentRepository
func (s *Store) Insert(ctx context.Context, tx database.Tx, payment *domain.PaymentRecord) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}
	if payment.Amount < 0 {
		return fmt.Errorf("failed to insert payment: negative amount %d", payment.Amount)
	}

	s.mu.RLock()
	_, committed := s.payments[payment.SessionID]
	s.mu.RUnlock()
	if committed {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, payment.SessionID)
	}
	for _, staged := range mtx.payments {
		if staged.SessionID == payment.SessionID {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, payment.SessionID)
		}
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := s.now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	mtx.payments = append(mtx.payments, *payment)
	return nil
}

// FindByUserID implements domain.PaymentRepository
func (s *Store) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentRecord, error) {
	s.mu.RLock()
	var out []domain.PaymentRecord
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset > 0 {
		if offset >= len(out) {
			return []domain.PaymentRecord{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// FindByEmail implements userdomain.EntitlementRepository
func (s *Store) FindByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	s.mu.RLock()
	id, ok := s.emails[email]
	s.mu.RUnlock()
	if !ok {
		return nil, userdomain.ErrUserNotFound
	}
	return s.FindByID(ctx, id)
}

// FindByID implements userdomain.EntitlementRepository
func (s *Store) FindByID(ctx context.Context, id string) (*userdomain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, userdomain.ErrUserNotFound
	}
	user.Payments = append([]userdomain.UserPayment(nil), user.Payments...)
	return &user, nil
}

// UpdateStatusAndAppendPayment implements userdomain.EntitlementRepository
func (s *Store) UpdateStatusAndAppendPayment(ctx context.Context, tx database.Tx, userID, paymentID string) error {
	mtx, err := s.unwrap(tx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return userdomain.ErrUserNotFound
	}

	mtx.links = append(mtx.links, userdomain.UserPayment{
		UserID:    userID,
		PaymentID: paymentID,
		CreatedAt: s.now(),
	})
	return nil
}

// Payments returns every ledger entry; used by tests and diagnostics
func (s *Store) Payments() []domain.PaymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}
