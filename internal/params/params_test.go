package params

import (
	"errors"
	"testing"
)

func TestDefaultsValid(t *testing.T) {
	if _, err := New(Defaults()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestSettersEnforceBounds(t *testing.T) {
	p, _ := New(Defaults())
	if err := p.SetFeeBps(MaxFeeBps + 1); !errors.Is(err, ErrParamOutOfRange) {
		t.Fatalf("fee over cap accepted: %v", err)
	}
	if err := p.SetExposureCapPct(MaxExposureCapPct + 1); !errors.Is(err, ErrParamOutOfRange) {
		t.Fatalf("exposure over cap accepted: %v", err)
	}
	if err := p.SetStakeBounds(100, 50); !errors.Is(err, ErrParamOutOfRange) {
		t.Fatalf("inverted stake bounds accepted: %v", err)
	}
	// A rejected update must leave the previous values intact.
	if got := p.Snapshot().FeeBps; got != Defaults().FeeBps {
		t.Fatalf("rejected update mutated fee: %d", got)
	}
}

func TestUpdateInstallsValidValues(t *testing.T) {
	p, _ := New(Defaults())
	if err := p.SetFeeBps(250); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if got := p.Snapshot().FeeBps; got != 250 {
		t.Fatalf("fee not installed: %d", got)
	}
	if err := p.SetStakeBounds(5, 500); err != nil {
		t.Fatalf("set stake bounds: %v", err)
	}
	s := p.Snapshot()
	if s.StakeMin != 5 || s.StakeMax != 500 {
		t.Fatalf("stake bounds not installed: %+v", s)
	}
}
