package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai/openaitest"
)

const finalReply = "Here is the task:\n```json\n" + `{
  "name": "Order ledger consumer",
  "question": "Fix the consumer so offsets are committed after processing.",
  "code_files": {"README.md": "# Ledger", "/run.sh": "docker compose up -d"},
  "outcomes": ["No duplicate ledger rows after restart"],
  "pre_requisites": "- Docker\n- Java 17",
  "answer": "Commit offsets after the DB write.",
  "hints": ["Look at enable.auto.commit"],
  "definitions": {"offset": "Position of a record in a partition."}
}` + "\n```\nGood luck!"

func testLibrary(t *testing.T) *prompts.Library {
	t.Helper()
	lib, err := prompts.NewLibrary(&prompts.Chain{
		Key:     "Java (BASIC), Kafka (BASIC)",
		System:  "system for {{.OrganizationName}}",
		Prompts: []string{"first {{.Competencies}}", "second", "third"},
	})
	require.NoError(t, err)
	return lib
}

func javaKafka() []types.Competency {
	return []types.Competency{
		{CompetencyID: "c1", Name: "Java", Proficiency: "BASIC"},
		{CompetencyID: "c2", Name: "Kafka", Proficiency: "basic"},
	}
}

func TestGenerateSendsGrowingTranscript(t *testing.T) {
	ai := openaitest.Texts("ack one", "ack two", finalReply)
	g := New(logger.Nop(), ai, testLibrary(t))
	g.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	task, err := g.Generate(context.Background(), Input{
		Competencies: javaKafka(),
		Background:   types.Background{Organization: types.OrganizationBackground{OrganizationName: "Acme"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Order ledger consumer", task.Name)
	require.Equal(t, []string{"Docker", "Java 17"}, task.PreRequisites)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), task.CreatedAt)

	require.Len(t, ai.Calls, 3)
	roles := func(msgs []openai.Message) []openai.Role {
		out := make([]openai.Role, len(msgs))
		for i, m := range msgs {
			out[i] = m.Role
		}
		return out
	}
	require.Equal(t, []openai.Role{openai.RoleSystem, openai.RoleUser}, roles(ai.Calls[0].Messages))
	require.Equal(t, "system for Acme", ai.Calls[0].Messages[0].Content)
	require.True(t, strings.HasPrefix(ai.Calls[0].Messages[1].Content, "first - Java (BASIC)"))

	last := ai.Calls[2].Messages
	require.Equal(t, []openai.Role{
		openai.RoleSystem, openai.RoleUser, openai.RoleAssistant,
		openai.RoleUser, openai.RoleAssistant, openai.RoleUser,
	}, roles(last))
	require.Equal(t, "ack one", last[2].Content)
	require.Equal(t, "third", last[5].Content)
}

func TestGenerateFallsBackToPlainStackKey(t *testing.T) {
	lib, err := prompts.NewLibrary(&prompts.Chain{Key: "Java, Kafka", System: "s", Prompts: []string{"only"}})
	require.NoError(t, err)
	ai := openaitest.Texts(finalReply)
	task, err := New(logger.Nop(), ai, lib).Generate(context.Background(), Input{Competencies: javaKafka()})
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, 1, ai.CallCount())
}

func TestGenerateUnsupportedStackMakesNoCalls(t *testing.T) {
	ai := openaitest.Texts(finalReply)
	_, err := New(logger.Nop(), ai, testLibrary(t)).Generate(context.Background(), Input{
		Competencies: []types.Competency{{Name: "Cobol", Proficiency: "ADVANCED"}},
	})
	require.Error(t, err)
	require.True(t, types.IsUnsupportedStack(err))
	require.Contains(t, err.Error(), `"Cobol (ADVANCED)"`)
	require.Equal(t, 0, ai.CallCount())
}

func TestGenerateUnparseableFinalReply(t *testing.T) {
	ai := openaitest.Texts("ok", "ok", "Sorry, I cannot produce that task.")
	_, err := New(logger.Nop(), ai, testLibrary(t)).Generate(context.Background(), Input{Competencies: javaKafka()})
	var perr *types.ResponseParseError
	require.True(t, errors.As(err, &perr), "want ResponseParseError, got %v", err)
	require.Equal(t, 3, ai.CallCount())
}

func TestGenerateRejectsInvalidTask(t *testing.T) {
	ai := openaitest.Texts("ok", "ok", `{"name": "x", "definitions": {}}`)
	_, err := New(logger.Nop(), ai, testLibrary(t)).Generate(context.Background(), Input{Competencies: javaKafka()})
	require.ErrorIs(t, err, types.ErrInvalidTask)
}

func TestGenerateStopsOnTransportError(t *testing.T) {
	ai := openaitest.New(openaitest.Reply{Text: "ok"}, openaitest.Reply{Err: errors.New("502 bad gateway")})
	_, err := New(logger.Nop(), ai, testLibrary(t)).Generate(context.Background(), Input{Competencies: javaKafka()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "turn 2/3")
	require.Equal(t, 2, ai.CallCount())
}
