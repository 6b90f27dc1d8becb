package intentstatus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_RoundTripsForEveryMember(t *testing.T) {
	all := []Status{Created, Committed, Registered, Filled, SolverPaid, UserClaimed, Expired, Refunded, Failed}
	for _, s := range all {
		token := s.String()
		parsed, err := Parse(token)
		require.NoError(t, err, "status %v failed to round trip", s)
		require.Equal(t, s, parsed)
	}
}

func TestParse_UnknownTokenErrors(t *testing.T) {
	_, err := Parse("bogus")
	require.Error(t, err)
}

func TestCanTransition_FollowsDAG(t *testing.T) {
	require.True(t, CanTransition(Created, Committed))
	require.True(t, CanTransition(Committed, Registered))
	require.True(t, CanTransition(Registered, Filled))
	require.True(t, CanTransition(Filled, SolverPaid))
	require.True(t, CanTransition(SolverPaid, UserClaimed))
	require.True(t, CanTransition(Expired, Refunded))

	// No back-edges.
	require.False(t, CanTransition(Registered, Committed))
	require.False(t, CanTransition(UserClaimed, SolverPaid))
	require.False(t, CanTransition(Refunded, Expired))
}

func TestTerminal(t *testing.T) {
	require.True(t, Terminal(UserClaimed))
	require.True(t, Terminal(Refunded))
	require.True(t, Terminal(Failed))
	require.False(t, Terminal(Created))
	require.False(t, Terminal(Registered))
}
