package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/compass/pkg/types"
)

func msg(role types.MessageRole, content string) *types.Message {
	return &types.Message{Role: role, Content: content}
}

func TestTrimEmptyHistory(t *testing.T) {
	assert.Nil(t, Trim(nil, 100, nil))
	assert.Nil(t, Trim([]*types.Message{}, 100, nil))
}

func TestTrimFitsWithinBudget(t *testing.T) {
	messages := []*types.Message{
		msg(types.RoleUser, "hello"),
		msg(types.RoleAssistant, "hi there"),
		msg(types.RoleUser, "how are you"),
	}

	trimmed := Trim(messages, 1000, nil)
	require.Len(t, trimmed, 3)
	assert.Equal(t, messages[0].Content, trimmed[0].Content)
	assert.Equal(t, messages[2].Content, trimmed[2].Content)
}

func TestTrimDropsOldestFirst(t *testing.T) {
	messages := []*types.Message{
		msg(types.RoleUser, strings.Repeat("a", 400)),
		msg(types.RoleUser, strings.Repeat("b", 400)),
		msg(types.RoleUser, strings.Repeat("c", 400)),
	}

	// Each message costs about 104 tokens; a budget of 250 fits two.
	trimmed := Trim(messages, 250, nil)
	require.Len(t, trimmed, 2)
	assert.Contains(t, trimmed[0].Content, "b")
	assert.Contains(t, trimmed[1].Content, "c")
}

func TestTrimAlwaysKeepsNewest(t *testing.T) {
	messages := []*types.Message{
		msg(types.RoleUser, "old"),
		msg(types.RoleUser, strings.Repeat("x", 4000)),
	}

	trimmed := Trim(messages, 50, nil)
	require.Len(t, trimmed, 1)
	assert.True(t, strings.HasPrefix(trimmed[0].Content, "x"))
	assert.True(t, strings.HasSuffix(trimmed[0].Content, truncationMarker))
}

func TestTrimTruncatedMessageFitsBudget(t *testing.T) {
	messages := []*types.Message{msg(types.RoleUser, strings.Repeat("y", 4000))}

	trimmed := Trim(messages, 80, nil)
	require.Len(t, trimmed, 1)
	assert.LessOrEqual(t, messageCost(trimmed[0], charEstimator{}), 80)
}

func TestTrimNeverMutatesInput(t *testing.T) {
	original := strings.Repeat("z", 4000)
	messages := []*types.Message{msg(types.RoleUser, original)}

	_ = Trim(messages, 20, nil)
	assert.Equal(t, original, messages[0].Content)
}

func TestTrimCountsToolCallArguments(t *testing.T) {
	withCalls := &types.Message{
		Role: types.RoleAssistant,
		ToolCalls: []types.ToolCall{
			{ID: "1", Name: "crm_lookup", Arguments: strings.Repeat(`{"q":"a"}`, 50)},
		},
	}
	plain := msg(types.RoleUser, "short question")
	messages := []*types.Message{withCalls, plain}

	// The tool-call arguments push the older message over the budget.
	trimmed := Trim(messages, 40, nil)
	require.Len(t, trimmed, 1)
	assert.Equal(t, "short question", trimmed[0].Content)
}
