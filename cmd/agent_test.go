package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calm-cli/calm/internal/llm"
	"github.com/calm-cli/calm/internal/tools/catalog"
)

// stubEngine answers Complete from turns and Stream with chunks.
type stubEngine struct {
	turns  []llm.Turn
	chunks []string
	err    error

	requests []llm.Request
}

func (e *stubEngine) Complete(_ context.Context, req llm.Request) (llm.Turn, error) {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	if len(e.turns) == 0 {
		return llm.Text{}, nil
	}
	t := e.turns[0]
	e.turns = e.turns[1:]
	return t, nil
}

func (e *stubEngine) Stream(_ context.Context, req llm.Request) iter.Seq2[llm.Chunk, error] {
	return func(yield func(llm.Chunk, error) bool) {
		e.requests = append(e.requests, req)
		if e.err != nil {
			yield(llm.Chunk{}, e.err)
			return
		}
		text := ""
		for _, c := range e.chunks {
			text += c
			if !yield(llm.Chunk{Content: c}, nil) {
				return
			}
		}
		yield(llm.Chunk{Turn: llm.Text{Text: text}}, nil)
	}
}

func todaysMeetingsEngine() *stubEngine {
	return &stubEngine{
		turns: []llm.Turn{
			llm.ToolRequests{Calls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      catalog.ListEventsBetween,
				Arguments: `{"start_iso":"2025-08-14T00:00:00+08:00","end_iso":"2025-08-14T23:59:59+08:00"}`,
			}}},
			llm.Text{Text: "You have Standup at 10:00."},
		},
		chunks: []string{"You have ", "Standup at 10:00."},
	}
}

func TestAgentCmd_Stream(t *testing.T) {
	c := newCLI(t).withCredentials(t)
	seedEvents(c)
	engine := todaysMeetingsEngine()
	c.engine = engine

	res := c.run("", "agent", "今天有什麼會議", "--api-key", "k-flag")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "You have Standup at 10:00.\n", res.stdout)
	assert.Equal(t, []string{"k-flag"}, c.apiKeys)

	// decision, decision, re-issued stream
	require.Len(t, engine.requests, 3)
	last := engine.requests[2].Messages
	require.Len(t, last, 4)
	assert.Equal(t, llm.RoleTool, last[3].Role)
	assert.Contains(t, last[3].Content, "Standup")
}

func TestAgentCmd_JSON(t *testing.T) {
	c := newCLI(t).withCredentials(t)
	seedEvents(c)
	c.engine = todaysMeetingsEngine()
	t.Setenv("GEMINI_API_KEY", "k-env")

	res := c.run("", "agent", "今天有什麼會議", "--json")
	require.NoError(t, res.err, res.stderr)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, map[string]string{"answer": "You have Standup at 10:00."}, out)
	assert.Equal(t, []string{"k-env"}, c.apiKeys)
}

func TestAgentCmd_NoStreamKeyFile(t *testing.T) {
	c := newCLI(t).withCredentials(t)
	c.engine = &stubEngine{turns: []llm.Turn{llm.Text{Text: "Hello!"}}}
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "gemini.key"), []byte("k-file\nignored\n"), 0600))

	res := c.run("", "agent", "hi", "--no-stream")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "Hello!\n", res.stdout)
	assert.Equal(t, []string{"k-file"}, c.apiKeys)
}

func TestAgentCmd_MaxSteps(t *testing.T) {
	c := newCLI(t).withCredentials(t)
	call := llm.ToolRequests{Calls: []llm.ToolCall{{Name: catalog.ListEventsBetween,
		Arguments: `{"start_iso":"2025-08-14T00:00:00","end_iso":"2025-08-14T23:59:59"}`}}}
	c.engine = &stubEngine{turns: []llm.Turn{call, call, call}}

	res := c.run("", "agent", "loop", "--api-key", "k", "--no-stream", "--max-steps", "2")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "(No final answer after tool steps)\n", res.stdout)
}

func TestAgentCmd_MissingKey(t *testing.T) {
	c := newCLI(t).withCredentials(t)

	res := c.run("", "agent", "hi")
	assert.Equal(t, 1, res.code())
	assert.Contains(t, res.stderr, "Missing Gemini API key")
	assert.Empty(t, c.apiKeys)
}

func TestAgentCmd_EngineFailure(t *testing.T) {
	c := newCLI(t).withCredentials(t)
	c.engine = &stubEngine{err: errors.New("upstream_failure: 503")}

	res := c.run("", "agent", "hi", "--api-key", "k", "--no-stream")
	assert.Equal(t, 1, res.code())
	assert.Contains(t, res.stderr, "Agent failed: upstream_failure: 503")
}

func TestChatCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		c := newCLI(t)
		engine := &stubEngine{turns: []llm.Turn{llm.Text{Text: "42"}}}
		c.engine = engine

		res := c.run("", "chat", "meaning of life?", "--api-key", "k")
		require.NoError(t, res.err, res.stderr)
		assert.Equal(t, "42\n", res.stdout)

		require.Len(t, engine.requests, 1)
		assert.Nil(t, engine.requests[0].Tools)
		assert.Equal(t, []llm.Message{llm.User("meaning of life?")}, engine.requests[0].Messages)
	})

	t.Run("json", func(t *testing.T) {
		c := newCLI(t)
		c.engine = &stubEngine{turns: []llm.Turn{llm.Text{Text: "42"}}}

		res := c.run("", "chat", "meaning of life?", "--api-key", "k", "--json", "--model", "gemini-2.5-pro")
		require.NoError(t, res.err, res.stderr)
		assert.JSONEq(t, `{"model":"gemini-2.5-pro","answer":"42"}`, res.stdout)
	})

	t.Run("stream", func(t *testing.T) {
		c := newCLI(t)
		c.engine = &stubEngine{chunks: []string{"4", "2"}}

		res := c.run("", "chat", "meaning of life?", "--api-key", "k", "--stream")
		require.NoError(t, res.err, res.stderr)
		assert.Equal(t, "42\n", res.stdout)
	})

	t.Run("missing key", func(t *testing.T) {
		c := newCLI(t)

		res := c.run("", "chat", "hi")
		assert.Equal(t, 1, res.code())
		assert.Contains(t, res.stderr, "Gemini API key not found")
		assert.Contains(t, res.stderr, "GEMINI_API_KEY")
	})
}
