package transfer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opticash/opticash-api/internal/domain/user"
	"github.com/opticash/opticash-api/internal/domain/wallet"
	"github.com/opticash/opticash-api/internal/pkg/email"
	"github.com/opticash/opticash-api/internal/pkg/lock"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
	pins  map[uuid.UUID]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]*user.User{}, pins: map[uuid.UUID]string{}}
}

func (f *fakeUsers) add(name, pin string) *user.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &user.User{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	f.users[u.ID] = u
	f.pins[u.ID] = pin
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUsers) VerifyPin(_ context.Context, id uuid.UUID, pin string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	if u == nil || pin == "" || f.pins[id] != pin {
		return nil, user.ErrInvalidPin
	}
	return u, nil
}

// fakeLedger is an in-memory Wallets and Store with the same uniqueness
// rules as the Postgres schema.
type fakeLedger struct {
	mu      sync.Mutex
	users   *fakeUsers
	wallets map[uuid.UUID]*wallet.Wallet
	intents map[string]*PaymentIntent
	txns    map[uuid.UUID]*Transaction // by payment intent id
	clock   time.Time

	settleErr   error
	settleCalls int
	settleDelay time.Duration
}

func newFakeLedger(users *fakeUsers) *fakeLedger {
	return &fakeLedger{
		users:   users,
		wallets: map[uuid.UUID]*wallet.Wallet{},
		intents: map[string]*PaymentIntent{},
		txns:    map[uuid.UUID]*Transaction{},
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeLedger) addWallet(userID uuid.UUID, balance int64) *wallet.Wallet {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &wallet.Wallet{ID: uuid.New(), UserID: userID, Balance: balance, CurrencyCode: "NGN"}
	f.wallets[w.ID] = w
	return w
}

func (f *fakeLedger) balance(walletID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[walletID].Balance
}

func (f *fakeLedger) setBalance(walletID uuid.UUID, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[walletID].Balance = balance
}

func (f *fakeLedger) transactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txns)
}

func (f *fakeLedger) intentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intents)
}

func (f *fakeLedger) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeLedger) GetByUserID(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, wallet.ErrWalletNotFound
}

func (f *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeLedger) CreateIntent(_ context.Context, p *PaymentIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.intents[p.IdempotencyKey]; ok {
		return ErrDuplicateIdempotencyKey
	}
	cp := *p
	f.intents[p.IdempotencyKey] = &cp
	return nil
}

func (f *fakeLedger) GetIntentByKey(_ context.Context, key string) (*PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.intents[key]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *p
	if t, ok := f.txns[p.ID]; ok {
		tc := *t
		cp.Transaction = &tc
	}
	return &cp, nil
}

func (f *fakeLedger) Settle(_ context.Context, p *PaymentIntent) (*Transaction, error) {
	if f.settleDelay > 0 {
		time.Sleep(f.settleDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++

	if _, ok := f.txns[p.ID]; ok {
		return nil, ErrAlreadySettled
	}
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	sender := f.wallets[p.SenderWalletID]
	recipient := f.wallets[p.RecipientWalletID]
	if sender == nil || recipient == nil {
		return nil, wallet.ErrWalletNotFound
	}
	if sender.Balance < p.Amount {
		return nil, wallet.ErrInsufficientFunds
	}
	sender.Balance -= p.Amount
	recipient.Balance += p.Amount

	t := &Transaction{
		ID:                uuid.New(),
		Amount:            p.Amount,
		SenderWalletID:    p.SenderWalletID,
		RecipientWalletID: p.RecipientWalletID,
		PaymentIntentID:   p.ID,
		Status:            StatusSucceeded,
		CreatedAt:         f.tick(),
	}
	f.txns[p.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeLedger) RecordFailure(_ context.Context, p *PaymentIntent) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.txns[p.ID]; ok {
		cp := *t
		return &cp, nil
	}
	t := &Transaction{
		ID:                uuid.New(),
		Amount:            p.Amount,
		SenderWalletID:    p.SenderWalletID,
		RecipientWalletID: p.RecipientWalletID,
		PaymentIntentID:   p.ID,
		Status:            StatusFailed,
		CreatedAt:         f.tick(),
	}
	f.txns[p.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeLedger) ListHistory(_ context.Context, walletID uuid.UUID, limit, offset int) ([]HistoryEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*Transaction
	for _, t := range f.txns {
		if t.SenderWalletID == walletID || t.RecipientWalletID == walletID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	if offset >= total {
		return []HistoryEntry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	entries := make([]HistoryEntry, 0, end-offset)
	for _, t := range matched[offset:end] {
		direction := DirectionReceived
		other := t.SenderWalletID
		if t.SenderWalletID == walletID {
			direction = DirectionSent
			other = t.RecipientWalletID
		}
		cw := f.wallets[other]
		u, _ := f.users.GetByID(context.Background(), cw.UserID)
		entries = append(entries, HistoryEntry{
			ID:           t.ID,
			Amount:       t.Amount,
			Status:       t.Status,
			Direction:    direction,
			Counterparty: Counterparty{UserID: u.ID, Name: u.Name, Email: u.Email},
			CurrencyCode: f.wallets[t.SenderWalletID].CurrencyCode,
			CreatedAt:    t.CreatedAt,
		})
	}
	return entries, total, nil
}

var (
	_ Store   = (*Repository)(nil)
	_ Store   = (*fakeLedger)(nil)
	_ Wallets = (*fakeLedger)(nil)
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []*email.Message
	err      error
}

func (n *fakeNotifier) Enqueue(msg *email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *fakeNotifier) sent() []*email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*email.Message(nil), n.messages...)
}

// passthroughLocker runs fn without any mutual exclusion.
type passthroughLocker struct{}

func (passthroughLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// busyLocker reports every key as held elsewhere.
type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(ctx context.Context) error) error {
	return lock.ErrNotAcquired
}

var errStoreDown = errors.New("connection reset by peer")

// fixture is a two-user world with funded wallets.
type fixture struct {
	users     *fakeUsers
	ledger    *fakeLedger
	notifier  *fakeNotifier
	svc       *Service
	now       time.Time
	sender    *user.User
	recipient *user.User
	senderW   *wallet.Wallet
	recipW    *wallet.Wallet
}

func newFixture(senderBalance, recipientBalance int64) *fixture {
	return newFixtureWithLocker(senderBalance, recipientBalance, lock.NewLocalLocker(lock.DefaultOptions()))
}

func newFixtureWithLocker(senderBalance, recipientBalance int64, locker lock.Locker) *fixture {
	users := newFakeUsers()
	ledger := newFakeLedger(users)
	notifier := &fakeNotifier{}

	f := &fixture{
		users:    users,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sender = users.add("ada", "1234")
	f.recipient = users.add("grace", "5678")
	f.senderW = ledger.addWallet(f.sender.ID, senderBalance)
	f.recipW = ledger.addWallet(f.recipient.ID, recipientBalance)

	f.svc = NewService(users, ledger, ledger, locker, notifier, Config{IntentTTL: 5 * time.Minute})
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) initiate(amount int64) (*InitiateResult, error) {
	return f.svc.Initiate(context.Background(), InitiateInput{
		CallerID:    f.sender.ID,
		RecipientID: f.recipient.ID,
		Amount:      amount,
		Pin:         "1234",
	})
}
