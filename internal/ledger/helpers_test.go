package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/model"
	"github.com/dukerupert/binpoints/internal/store"
)

// env is a ledger service over an in-memory SQLite store plus the admin
// stores used to seed and inspect it.
type env struct {
	db      *database.DB
	store   *store.LedgerStore
	users   *store.UserStore
	bins    *store.BinStore
	rewards *store.RewardStore
	svc     *ledger.Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openEnv(tb testing.TB) *env {
	tb.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	ls := store.NewLedgerStore(db)
	return &env{
		db:      db,
		store:   ls,
		users:   store.NewUserStore(db),
		bins:    store.NewBinStore(db),
		rewards: store.NewRewardStore(db),
		svc:     ledger.NewService(ls, discardLogger()),
	}
}

func (e *env) user(tb testing.TB, email string, points int) *model.User {
	tb.Helper()
	ctx := context.Background()
	u, err := e.users.Create(ctx, email, email, model.RoleUser)
	if err != nil {
		tb.Fatalf("create user: %v", err)
	}
	if points != 0 {
		if err := e.users.SetPoints(ctx, u.ID, points); err != nil {
			tb.Fatalf("set points: %v", err)
		}
		u.TotalPoints = points
	}
	return u
}

func (e *env) qrCodes(tb testing.TB, n int) (*model.Bin, []model.QRCode) {
	tb.Helper()
	ctx := context.Background()
	bin, err := e.bins.Create(ctx, "Main St")
	if err != nil {
		tb.Fatalf("create bin: %v", err)
	}
	codes, err := e.bins.IssueQRCodes(ctx, bin.ID, n)
	if err != nil {
		tb.Fatalf("issue qr codes: %v", err)
	}
	return bin, codes
}

func (e *env) reward(tb testing.TB, name string, cost int) *model.Reward {
	tb.Helper()
	r, err := e.rewards.Create(context.Background(), name, "", cost)
	if err != nil {
		tb.Fatalf("create reward: %v", err)
	}
	return r
}

func (e *env) balance(tb testing.TB, userID int64) int {
	tb.Helper()
	u, err := e.users.GetByID(context.Background(), userID)
	if err != nil || u == nil {
		tb.Fatalf("get user %d: %v", userID, err)
	}
	return u.TotalPoints
}

var errInjected = errors.New("injected failure")

// faultStore wraps a Store and hands workflows a Tx whose behaviour can be
// altered per method.
type faultStore struct {
	ledger.Store
	wrap func(ledger.Tx) ledger.Tx
}

func (s *faultStore) WithinTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx ledger.Tx) error {
		return fn(s.wrap(tx))
	})
}

// failingCreditTx fails the balance credit after the code was marked used
// and the drop inserted.
type failingCreditTx struct{ ledger.Tx }

func (failingCreditTx) IncrementUserPoints(context.Context, int64, int) error {
	return errInjected
}

// staleQRTx consumes the code behind the workflow's back right after the
// read, so the conditional update finds it already used.
type staleQRTx struct{ ledger.Tx }

func (t staleQRTx) GetUnusedQRCode(ctx context.Context, id int64) (*model.QRCode, error) {
	qr, err := t.Tx.GetUnusedQRCode(ctx, id)
	if err != nil || qr == nil {
		return qr, err
	}
	if _, err := t.Tx.MarkQRCodeUsed(ctx, id); err != nil {
		return nil, err
	}
	return qr, nil
}

// noBinTx loses every bin, as if the code's bin row vanished between the
// QR read and the bin read.
type noBinTx struct{ ledger.Tx }

func (noBinTx) GetBin(context.Context, int64) (*model.Bin, error) {
	return nil, nil
}

// staleBalanceTx drains the user's balance right after the read, so the
// conditional debit finds it insufficient.
type staleBalanceTx struct{ ledger.Tx }

func (t staleBalanceTx) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := t.Tx.GetUser(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	if _, err := t.Tx.DecrementUserPoints(ctx, id, u.TotalPoints); err != nil {
		return nil, err
	}
	return u, nil
}

// brokenStore fails every operation before a transaction starts.
type brokenStore struct{}

func (brokenStore) WithinTx(context.Context, func(ledger.Tx) error) error {
	return errInjected
}

func (brokenStore) ListQRCodesByBin(context.Context, int64) ([]model.QRCode, error) {
	return nil, errInjected
}

func (brokenStore) ListRedemptionsByUser(context.Context, int64) ([]model.RedemptionEntry, error) {
	return nil, errInjected
}

func modelPatchActive(active bool) model.RewardPatch {
	return model.RewardPatch{Active: &active}
}
