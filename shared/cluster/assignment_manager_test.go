package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanta/matchday/shared/registry"
)

type staticMembers struct {
	ids []string
	err error
}

func (s *staticMembers) GetActiveServices(context.Context, string) (map[string]registry.ServiceInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]registry.ServiceInfo, len(s.ids))
	for _, id := range s.ids {
		out[id] = registry.ServiceInfo{ServiceID: id}
	}
	return out, nil
}

func TestAssignment_SingleInstanceOwnsEverything(t *testing.T) {
	sam := NewServiceAssignmentManager(&staticMembers{}, registry.RosterServiceType, "self", 0)
	for i := 0; i < 20; i++ {
		mine, err := sam.IsResponsible(fmt.Sprintf("match-%d", i))
		require.NoError(t, err)
		assert.True(t, mine)
	}
}

func TestAssignment_PartitionsAcrossInstances(t *testing.T) {
	ids := []string{"roster-a", "roster-b", "roster-c"}
	managers := make([]*ServiceAssignmentManager, len(ids))
	for i, id := range ids {
		managers[i] = NewServiceAssignmentManager(&staticMembers{ids: ids}, registry.RosterServiceType, id, 0)
		managers[i].Refresh()
	}

	for i := 0; i < 200; i++ {
		entity := fmt.Sprintf("match-%d", i)
		owners := 0
		for _, m := range managers {
			mine, err := m.IsResponsible(entity)
			require.NoError(t, err)
			if mine {
				owners++
			}
		}
		assert.Equal(t, 1, owners, entity)
	}
}

func TestAssignment_EmptyRing(t *testing.T) {
	members := &staticMembers{ids: []string{"other"}}
	sam := NewServiceAssignmentManager(members, registry.RosterServiceType, "self", 0)
	sam.Refresh()

	members.ids = nil
	sam.Refresh()
	_, err := sam.IsResponsible("m1")
	assert.Error(t, err)
}

func TestAssignment_RefreshErrorKeepsRing(t *testing.T) {
	members := &staticMembers{err: errors.New("redis down")}
	sam := NewServiceAssignmentManager(members, registry.RosterServiceType, "self", 0)
	sam.Refresh()

	mine, err := sam.IsResponsible("m1")
	require.NoError(t, err)
	assert.True(t, mine)
}
