package house

import (
	"context"
	"errors"
	"testing"
	"time"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/commitment"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
	"wagerhouse/internal/payout"
)

type fixture struct {
	svc  *Service
	pool *bankroll.Manager
	led  *ledger.Memory
	reg  *agents.MemRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	led := ledger.NewMemory()
	reg := agents.NewMemRegistry()
	reg.Add("sybil", "sybil", true)
	reg.Add("pat", "pat", true)
	led.Deposit("sybil", 1_000_000)
	led.Deposit("pat", 50_000)
	p, err := params.New(params.Defaults())
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	pool := bankroll.New(led, reg, p)
	if err := pool.Stake(context.Background(), "sybil", 100_000); err != nil {
		t.Fatalf("seed bankroll: %v", err)
	}
	return &fixture{
		svc:  NewService(pool, reg, p, entropy.NewEnv(), &feed.Capture{}),
		pool: pool,
		led:  led,
		reg:  reg,
	}
}

// conserved asserts that every unit deposited is still accounted for across
// agent balances, the fee collector, and ledger escrow.
func (f *fixture) conserved(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	total := f.led.Escrowed()
	for _, acct := range []string{"sybil", "pat", ledger.FeeCollector} {
		bal, _ := f.led.BalanceOf(ctx, acct)
		total += bal
	}
	if total != 1_050_000 {
		t.Fatalf("funds not conserved: %d", total)
	}
	if f.led.Escrowed() != f.pool.Status().Balance {
		t.Fatalf("escrow %d != pool balance %d", f.led.Escrowed(), f.pool.Status().Balance)
	}
}

func (f *fixture) startHand(t *testing.T, stake int64, secret string) *Hand {
	t.Helper()
	h, err := f.svc.StartHand(context.Background(), "pat", stake, commitment.Commit(0, secret))
	if err != nil {
		t.Fatalf("start hand: %v", err)
	}
	return h
}

func TestHandSettlesOnStand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const stake = 1_000
	h := f.startHand(t, stake, "s3cret")
	if h.State != HandCreated {
		t.Fatalf("fresh hand state = %s", h.State)
	}
	h, err := f.svc.RevealHand(ctx, h.ID, "pat", "s3cret")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if h.State != HandInPlay || h.PlayerSum < 2 || h.PlayerSum > 2*drawMax {
		t.Fatalf("opening deal: %+v", h)
	}
	h, err = f.svc.Stand(ctx, h.ID, "pat")
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	if h.State != HandSettled {
		t.Fatalf("stand did not settle: %s", h.State)
	}
	if h.HouseSum < HouseStand {
		t.Fatalf("house stopped below stand threshold: %d", h.HouseSum)
	}

	bal, _ := f.led.BalanceOf(ctx, "pat")
	switch h.Outcome {
	case OutcomeWin:
		fee := payout.Fee(2*stake, 100)
		if bal != 50_000-stake+(2*stake-fee) {
			t.Fatalf("win balance = %d", bal)
		}
	case OutcomeLose:
		if bal != 50_000-stake {
			t.Fatalf("loss balance = %d", bal)
		}
	case OutcomePush:
		if bal != 50_000 {
			t.Fatalf("push balance = %d", bal)
		}
	default:
		t.Fatalf("unexpected outcome %s", h.Outcome)
	}
	f.conserved(t)
}

func TestHittingForeverBusts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	h, err := f.svc.RevealHand(ctx, h.ID, "pat", "s3cret")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	for i := 0; h.State == HandInPlay; i++ {
		if i > 30 {
			t.Fatalf("hand never busted: %+v", h)
		}
		h, err = f.svc.Hit(ctx, h.ID, "pat")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if h.Outcome != OutcomeLose || h.PlayerSum <= BustThreshold {
		t.Fatalf("bust settled as %s at %d", h.Outcome, h.PlayerSum)
	}
	bal, _ := f.led.BalanceOf(ctx, "pat")
	if bal != 50_000-1_000 {
		t.Fatalf("bust balance = %d", bal)
	}
	// The realized stake accrues to the sole staker.
	if _, pending, ok := f.pool.PositionOf("sybil"); !ok || pending != 1_000 {
		t.Fatalf("staker pending = %d", pending)
	}
	f.conserved(t)
}

func TestRevealWrongSecretRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	if _, err := f.svc.RevealHand(ctx, h.ID, "pat", "wrong"); !errors.Is(err, commitment.ErrCommitmentMismatch) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
	got, _ := f.svc.GetHand(h.ID)
	if got.State != HandCreated {
		t.Fatalf("failed reveal mutated state: %s", got.State)
	}
}

func TestDoubleOnlyBeforeHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	h, _ = f.svc.RevealHand(ctx, h.ID, "pat", "s3cret")
	h, err := f.svc.Hit(ctx, h.ID, "pat")
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if h.State != HandInPlay {
		t.Skip("first hit busted the hand")
	}
	if _, err := f.svc.Double(ctx, h.ID, "pat"); !errors.Is(err, ErrDoubleAfterHit) {
		t.Fatalf("double after hit accepted: %v", err)
	}
}

func TestDoubleRaisesStakeAndSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	_, _ = f.svc.RevealHand(ctx, h.ID, "pat", "s3cret")
	h, err := f.svc.Double(ctx, h.ID, "pat")
	if err != nil {
		t.Fatalf("double: %v", err)
	}
	if !h.Doubled || h.Stake != 2_000 {
		t.Fatalf("stake not doubled: %+v", h)
	}
	if h.State != HandSettled {
		t.Fatalf("double did not run to settlement: %s", h.State)
	}
	f.conserved(t)
}

func TestUnrevealedHandForfeitsAfterWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	if _, err := f.svc.ExpireHand(ctx, h.ID); !errors.Is(err, ErrRevealStillOpen) {
		t.Fatalf("early expiry accepted: %v", err)
	}
	f.svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	h, err := f.svc.ExpireHand(ctx, h.ID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if h.Outcome != OutcomeForfeit {
		t.Fatalf("outcome = %s", h.Outcome)
	}
	if _, err := f.svc.RevealHand(ctx, h.ID, "pat", "s3cret"); !errors.Is(err, ErrNotAwaitingSeed) {
		t.Fatalf("reveal after forfeit accepted: %v", err)
	}
	bal, _ := f.led.BalanceOf(ctx, "pat")
	if bal != 50_000-1_000 {
		t.Fatalf("forfeit balance = %d", bal)
	}
	f.conserved(t)
}

func TestExposureRejectedBeforeEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Pool holds 100_000 and the cap is 10%, so a hand's 2x worst case must
	// stay at or under 10_000.
	if _, err := f.svc.StartHand(ctx, "pat", 5_001, commitment.Commit(0, "s")); !errors.Is(err, bankroll.ErrExposureExceeded) {
		t.Fatalf("oversized hand accepted: %v", err)
	}
	bal, _ := f.led.BalanceOf(ctx, "pat")
	if bal != 50_000 {
		t.Fatalf("rejected bet moved funds: %d", bal)
	}
	if _, err := f.svc.StartHand(ctx, "pat", 5_000, commitment.Commit(0, "s")); err != nil {
		t.Fatalf("cap-sized hand rejected: %v", err)
	}
}

func TestOnlyOwnerPlaysHand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.startHand(t, 1_000, "s3cret")
	if _, err := f.svc.RevealHand(ctx, h.ID, "sybil", "s3cret"); !errors.Is(err, ErrNotYourHand) {
		t.Fatalf("foreign reveal accepted: %v", err)
	}
}

func TestDiceEconomics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Worked example: stake 100 at target 50 with a 2% edge pays 196 gross.
	res, err := f.svc.RollDice(ctx, "pat", 100, 50)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if res.Roll < 0 || res.Roll > 99 {
		t.Fatalf("roll out of range: %d", res.Roll)
	}
	if res.Won != (res.Roll < 50) {
		t.Fatalf("win flag disagrees with roll: %+v", res)
	}
	bal, _ := f.led.BalanceOf(ctx, "pat")
	if res.Won {
		fee := payout.Fee(196, 100)
		if res.Payout != 196-fee || bal != 50_000-100+196-fee {
			t.Fatalf("win payout: %+v, balance %d", res, bal)
		}
	} else if bal != 50_000-100 {
		t.Fatalf("loss balance = %d", bal)
	}
	f.conserved(t)
}

func TestDiceTargetBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, target := range []int{0, 1, 100, 101, -5} {
		if _, err := f.svc.RollDice(ctx, "pat", 100, target); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("target %d accepted: %v", target, err)
		}
	}
}

func TestDiceExposureUsesGross(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Target 2 pays 49x, so a 250 stake grosses 12_250 against a 10_000 cap.
	if _, err := f.svc.RollDice(ctx, "pat", 250, 2); !errors.Is(err, bankroll.ErrExposureExceeded) {
		t.Fatalf("oversized dice bet accepted: %v", err)
	}
	bal, _ := f.led.BalanceOf(ctx, "pat")
	if bal != 50_000 {
		t.Fatalf("rejected bet moved funds: %d", bal)
	}
}

// downLedger rejects every TransferOut once tripped.
type downLedger struct {
	*ledger.Memory
	down bool
}

func (l *downLedger) TransferOut(ctx context.Context, payee string, amount int64, reason, refType, refID string) error {
	if l.down {
		return errors.New("ledger unavailable")
	}
	return l.Memory.TransferOut(ctx, payee, amount, reason, refType, refID)
}

func TestFailedPayoutFreezesHand(t *testing.T) {
	led := &downLedger{Memory: ledger.NewMemory()}
	reg := agents.NewMemRegistry()
	reg.Add("sybil", "sybil", true)
	reg.Add("pat", "pat", true)
	led.Deposit("sybil", 1_000_000)
	led.Deposit("pat", 50_000)
	p, err := params.New(params.Defaults())
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	pool := bankroll.New(led, reg, p)
	if err := pool.Stake(context.Background(), "sybil", 100_000); err != nil {
		t.Fatalf("seed bankroll: %v", err)
	}
	svc := NewService(pool, reg, p, entropy.NewEnv(), &feed.Capture{})
	ctx := context.Background()
	led.down = true

	// House losses move no funds, so play hands until one needs a payout.
	for i := 0; i < 50; i++ {
		secret := "s3cret" + string(rune('a'+i%26))
		h, err := svc.StartHand(ctx, "pat", 1_000, commitment.Commit(0, secret))
		if err != nil {
			t.Fatalf("start hand %d: %v", i, err)
		}
		if _, err := svc.RevealHand(ctx, h.ID, "pat", secret); err != nil {
			t.Fatalf("reveal %d: %v", i, err)
		}
		if _, err := svc.Stand(ctx, h.ID, "pat"); err == nil {
			continue
		}
		got, _ := svc.GetHand(h.ID)
		if got.State != HandFrozen {
			t.Fatalf("state = %s, want frozen", got.State)
		}
		if got.Outcome != OutcomeWin && got.Outcome != OutcomePush {
			t.Fatalf("frozen on outcome %s", got.Outcome)
		}
		// The hand cannot be replayed.
		if _, err := svc.Stand(ctx, h.ID, "pat"); !errors.Is(err, ErrNotInPlay) {
			t.Fatalf("frozen hand playable: %v", err)
		}
		if _, err := svc.Hit(ctx, h.ID, "pat"); !errors.Is(err, ErrNotInPlay) {
			t.Fatalf("frozen hand hittable: %v", err)
		}
		// Nothing was paid out; every escrowed stake is still held.
		bal, _ := led.BalanceOf(ctx, "pat")
		if bal != 50_000-int64(i+1)*1_000 {
			t.Fatalf("payout escaped a down ledger: %d", bal)
		}
		return
	}
	t.Fatal("no hand required a payout in 50 attempts")
}

func TestUnverifiedPlayerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reg.Add("ghost", "ghost", false)
	f.led.Deposit("ghost", 10_000)
	if _, err := f.svc.StartHand(ctx, "ghost", 1_000, commitment.Commit(0, "s")); !errors.Is(err, agents.ErrNotVerified) {
		t.Fatalf("unverified start accepted: %v", err)
	}
	if _, err := f.svc.RollDice(ctx, "ghost", 100, 50); !errors.Is(err, agents.ErrNotVerified) {
		t.Fatalf("unverified roll accepted: %v", err)
	}
}
