package runtime

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/omnihelp/switchboard/pkg/domain"
)

func TestCeilingGuardStandsDownDuringFallback(t *testing.T) {
	e := &Engine{clarifyBound: 0, retryBound: 0}
	s := &domain.TurnState{
		Phase: domain.PhaseGateDeciding,
		Trail: make([]domain.TrailEntry, e.maxTransitions()+1),
	}

	assert.True(t, e.ceilingExceeded(s, 0))

	// Once the guard has forced fallback it must let the fallback node run,
	// or the turn would never terminate.
	s.Phase = domain.PhaseFallback
	assert.False(t, e.ceilingExceeded(s, 0))

	// The baseline discounts trail entries carried over a suspension.
	s.Phase = domain.PhaseGateDeciding
	assert.False(t, e.ceilingExceeded(s, len(s.Trail)))
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	short := "What is your return policy?"
	assert.Equal(t, short, truncate(short))

	// Multi-byte runes positioned so a byte-index cut would split one.
	long := "a" + strings.Repeat("é", summaryLimit)
	got := truncate(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(got)-len("…"), summaryLimit)

	ascii := strings.Repeat("a", summaryLimit+5)
	assert.Equal(t, strings.Repeat("a", summaryLimit)+"…", truncate(ascii))
}
