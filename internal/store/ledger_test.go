package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/model"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type ledgerFixture struct {
	ledger  *LedgerStore
	users   *UserStore
	bins    *BinStore
	rewards *RewardStore

	user   *model.User
	bin    *model.Bin
	qr     model.QRCode
	reward *model.Reward
}

func newLedgerFixture(t *testing.T, db *database.DB) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	f := &ledgerFixture{
		ledger:  NewLedgerStore(db),
		users:   NewUserStore(db),
		bins:    NewBinStore(db),
		rewards: NewRewardStore(db),
	}

	var err error
	f.user, err = f.users.Create(ctx, "Alice", "alice@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.bin, err = f.bins.Create(ctx, "Main St")
	if err != nil {
		t.Fatalf("create bin: %v", err)
	}
	codes, err := f.bins.IssueQRCodes(ctx, f.bin.ID, 1)
	if err != nil {
		t.Fatalf("issue qr codes: %v", err)
	}
	f.qr = codes[0]
	f.reward, err = f.rewards.Create(ctx, "Coffee", "", 10)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return f
}

func TestLedgerTxGetters(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, f.user.ID)
		if err != nil || u == nil || u.ID != f.user.ID {
			t.Errorf("GetUser = %+v, %v", u, err)
		}
		if u, _ := tx.GetUser(ctx, 999); u != nil {
			t.Errorf("GetUser(999) = %+v, want nil", u)
		}

		qr, err := tx.GetUnusedQRCode(ctx, f.qr.ID)
		if err != nil || qr == nil || qr.BinID != f.bin.ID {
			t.Errorf("GetUnusedQRCode = %+v, %v", qr, err)
		}

		b, err := tx.GetBin(ctx, f.bin.ID)
		if err != nil || b == nil || b.Location != "Main St" {
			t.Errorf("GetBin = %+v, %v", b, err)
		}

		r, err := tx.GetRewardIfActive(ctx, f.reward.ID)
		if err != nil || r == nil || r.RequiredPoints != 10 {
			t.Errorf("GetRewardIfActive = %+v, %v", r, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
}

func TestLedgerTxInactiveRewardHidden(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	off := false
	if _, err := f.rewards.Update(ctx, f.reward.ID, model.RewardPatch{Active: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		r, err := tx.GetRewardIfActive(ctx, f.reward.ID)
		if err != nil {
			return err
		}
		if r != nil {
			t.Errorf("expected inactive reward to be hidden, got %+v", r)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
}

func TestLedgerTxMarkQRCodeUsedOnce(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	var first, second bool
	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		var err error
		if first, err = tx.MarkQRCodeUsed(ctx, f.qr.ID); err != nil {
			return err
		}
		second, err = tx.MarkQRCodeUsed(ctx, f.qr.ID)
		return err
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
	if !first {
		t.Error("first mark should succeed")
	}
	if second {
		t.Error("second mark should report a lost race")
	}

	qr, _ := f.bins.GetQRCode(ctx, f.qr.ID)
	if !qr.IsUsed {
		t.Error("expected qr code used")
	}
	if qr.UsedAt == nil {
		t.Error("expected used_at to be set")
	}

	err = f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		got, err := tx.GetUnusedQRCode(ctx, f.qr.ID)
		if got != nil {
			t.Errorf("used code returned as unused: %+v", got)
		}
		return err
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
}

func TestLedgerTxPointsCAS(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		if err := tx.IncrementUserPoints(ctx, f.user.ID, 15); err != nil {
			return err
		}
		ok, err := tx.DecrementUserPoints(ctx, f.user.ID, 10)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("decrement 10 of 15 should succeed")
		}
		ok, err = tx.DecrementUserPoints(ctx, f.user.ID, 10)
		if err != nil {
			return err
		}
		if ok {
			t.Error("decrement 10 of 5 should not apply")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.TotalPoints != 5 {
		t.Errorf("total_points = %d, want 5", u.TotalPoints)
	}
}

func TestLedgerTxIncrementMissingUser(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		return tx.IncrementUserPoints(ctx, 4242, 5)
	})
	if err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestLedgerWithinTxRollsBack(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.MarkQRCodeUsed(ctx, f.qr.ID); err != nil {
			return err
		}
		if _, err := tx.InsertTrashDrop(ctx, model.TrashDrop{
			UserID: f.user.ID, BinID: f.bin.ID, QRID: f.qr.ID,
			TrashType: "metal", ItemCount: 1, PointsEarned: 5,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	qr, _ := f.bins.GetQRCode(ctx, f.qr.ID)
	if qr.IsUsed {
		t.Error("qr code flag should be rolled back")
	}
	n, _ := f.bins.CountDropsForQRCode(ctx, f.qr.ID)
	if n != 0 {
		t.Errorf("drops = %d, want 0", n)
	}
}

func TestLedgerTrashDropUniquePerQRCode(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	drop := model.TrashDrop{
		UserID: f.user.ID, BinID: f.bin.ID, QRID: f.qr.ID,
		TrashType: "plastic", ItemCount: 2, PointsEarned: 8,
	}
	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		id, err := tx.InsertTrashDrop(ctx, drop)
		if err != nil {
			return err
		}
		if id == 0 {
			t.Error("expected non-zero drop id")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.InsertTrashDrop(ctx, drop)
		return err
	})
	if err == nil {
		t.Fatal("expected unique violation on second drop for the same code")
	}
}

func TestLedgerListRedemptionsByUser(t *testing.T) {
	f := newLedgerFixture(t, openTestDB(t))
	ctx := context.Background()

	other, _ := f.users.Create(ctx, "Bob", "bob@example.com", model.RoleUser)
	if err := f.users.SetPoints(ctx, f.user.ID, 100); err != nil {
		t.Fatalf("set points: %v", err)
	}

	var ids []int64
	err := f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		for i := 0; i < 2; i++ {
			id, err := tx.InsertRedemption(ctx, model.Redemption{UserID: f.user.ID, RewardID: f.reward.ID, PointsSpent: 10})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, err := tx.InsertRedemption(ctx, model.Redemption{UserID: other.ID, RewardID: f.reward.ID, PointsSpent: 10})
		return err
	})
	if err != nil {
		t.Fatalf("insert redemptions: %v", err)
	}

	entries, err := f.ledger.ListRedemptionsByUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("list redemptions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].RedemptionID != ids[1] {
		t.Errorf("first entry = %d, want newest %d", entries[0].RedemptionID, ids[1])
	}
	if entries[0].RewardName != "Coffee" || entries[0].RequiredPoints != 10 || entries[0].PointsSpent != 10 {
		t.Errorf("entry = %+v", entries[0])
	}

	none, err := f.ledger.ListRedemptionsByUser(ctx, 4242)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

// TestLedgerPostgres runs the CAS checks against a real Postgres when
// BINPOINTS_TEST_POSTGRES_URL is set.
func TestLedgerPostgres(t *testing.T) {
	url := os.Getenv("BINPOINTS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("BINPOINTS_TEST_POSTGRES_URL not set")
	}

	db, err := database.Open("postgres", url)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`TRUNCATE redemptions, trash_drops, qr_codes, rewards, smart_bins, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	f := newLedgerFixture(t, db)
	ctx := context.Background()

	err = f.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		qr, err := tx.GetUnusedQRCode(ctx, f.qr.ID)
		if err != nil {
			return err
		}
		if qr == nil {
			t.Fatal("expected unused code")
		}
		ok, err := tx.MarkQRCodeUsed(ctx, qr.ID)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("mark should succeed")
		}
		if _, err := tx.InsertTrashDrop(ctx, model.TrashDrop{
			UserID: f.user.ID, BinID: f.bin.ID, QRID: qr.ID,
			TrashType: "metal", ItemCount: 2, PointsEarned: 10,
		}); err != nil {
			return err
		}
		if err := tx.IncrementUserPoints(ctx, f.user.ID, 10); err != nil {
			return err
		}
		ok, err = tx.DecrementUserPoints(ctx, f.user.ID, 11)
		if err != nil {
			return err
		}
		if ok {
			t.Error("overdraft should not apply")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	u, _ := f.users.GetByID(ctx, f.user.ID)
	if u.TotalPoints != 10 {
		t.Errorf("total_points = %d, want 10", u.TotalPoints)
	}
}
