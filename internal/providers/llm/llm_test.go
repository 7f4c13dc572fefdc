package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/oscesim/internal/intent"
)

type scripted struct {
	chunks []string
	err    error
}

func (s scripted) StreamAnswer(context.Context, Request) (<-chan string, <-chan error) {
	out := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	if s.err != nil {
		errs <- s.err
	}
	close(errs)
	return out, errs
}

func (scripted) Close() error { return nil }

func TestCollect(t *testing.T) {
	got, err := Collect(context.Background(), scripted{chunks: []string{"It started ", "this morning."}}, Request{})
	require.NoError(t, err)
	assert.Equal(t, "It started this morning.", got)

	got, err = Collect(context.Background(), scripted{chunks: []string{"It "}, err: errors.New("quota")}, Request{})
	assert.EqualError(t, err, "quota")
	assert.Equal(t, "It ", got)
}

func TestParseClassification(t *testing.T) {
	code, err := parseClassification(`{"intent": "ASK_ONSET"}`)
	require.NoError(t, err)
	assert.Equal(t, intent.AskOnset, code)

	code, err = parseClassification("```json\n{\"intent\":\"REQUEST_ECG\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, intent.RequestECG, code)

	_, err = parseClassification(`ASK_ONSET`)
	assert.Error(t, err)
	_, err = parseClassification(`{"intent": ""}`)
	assert.Error(t, err)
}

func TestClassifierPromptListsEveryCode(t *testing.T) {
	p := classifierPrompt("what happened?", intent.All())
	for _, c := range intent.All() {
		assert.Contains(t, p, string(c))
	}
	assert.Contains(t, p, `"what happened?"`)
}

func TestToContentsMapsRoles(t *testing.T) {
	got := toContents([]Message{{Role: RoleUser, Text: "hi"}, {Role: "patient", Text: "hello"}, {Role: RoleUser}})
	require.Len(t, got, 2)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.Equal(t, RoleModel, got[1].Role)
}
