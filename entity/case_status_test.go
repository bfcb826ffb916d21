package entity_test

import (
	"testing"

	"github.com/habiliai/lodgechat/entity"
	"github.com/stretchr/testify/require"
)

func TestCaseStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to entity.CaseStatus }{
		{entity.CaseStatusOpen, entity.CaseStatusInProgress},
		{entity.CaseStatusOpen, entity.CaseStatusResolved},
		{entity.CaseStatusInProgress, entity.CaseStatusAwaitingExternal},
		{entity.CaseStatusAwaitingExternal, entity.CaseStatusResolved},
		{entity.CaseStatusResolved, entity.CaseStatusClosed},
		{entity.CaseStatusResolved, entity.CaseStatusInProgress},
		{entity.CaseStatusClosed, entity.CaseStatusInProgress},
	}
	for _, tc := range allowed {
		require.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	rejected := []struct{ from, to entity.CaseStatus }{
		{entity.CaseStatusResolved, entity.CaseStatusOpen},
		{entity.CaseStatusClosed, entity.CaseStatusOpen},
		{entity.CaseStatusInProgress, entity.CaseStatusOpen},
		{entity.CaseStatusAwaitingExternal, entity.CaseStatusInProgress},
		{entity.CaseStatusClosed, entity.CaseStatusResolved},
		{entity.CaseStatusOpen, entity.CaseStatusOpen},
		{entity.CaseStatusOpen, entity.CaseStatus("archived")},
	}
	for _, tc := range rejected {
		require.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestDirectKeyIsUnordered(t *testing.T) {
	require.Equal(t, entity.DirectKeyOf("alice", "bob"), entity.DirectKeyOf("bob", "alice"))
	require.NotEqual(t, entity.DirectKeyOf("alice", "bob"), entity.DirectKeyOf("alice", "carol"))
	require.NotEqual(t, entity.DirectKeyOf("a|b", "c"), entity.DirectKeyOf("a", "b|c"))
	require.NotEqual(t, entity.DirectKeyOf("1:a", "b"), entity.DirectKeyOf("1:a|b", ""))
}
