package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/engine"
)

// summer behaves like a program printing the sum of the integers on stdin.
func summer(ctx context.Context, req dispatch.Request) (dispatch.Execution, error) {
	sum := 0
	for _, f := range strings.Fields(*req.Input) {
		n, err := strconv.Atoi(f)
		if err != nil {
			msg := "invalid value: " + f
			return dispatch.Execution{Stderr: &msg, DidNotCrash: false}, nil
		}
		sum += n
	}
	return dispatch.Execution{Stdout: strconv.Itoa(sum), Time: 4, DidNotCrash: true}, nil
}

func TestRunSumExample(t *testing.T) {
	h := New(ExecutorFunc(summer))

	res, err := h.Run(context.Background(), Request{
		Code:     "p $stdin.read.split.sum(&:to_i)",
		Language: "ruby",
		Tests: []Test{
			{Input: "1\n2", ExpectedOutput: "3"},
			{Input: "2\n4", ExpectedOutput: "6"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TestsPassed)
	require.Len(t, res.Executions, 2)
	for _, e := range res.Executions {
		assert.Equal(t, e.ExpectedOutput, e.ActualOutput)
		assert.True(t, e.DidNotCrash)
	}
	assert.Equal(t, "1\n2", res.Executions[0].Input)
}

func TestRunVerdicts(t *testing.T) {
	h := New(ExecutorFunc(summer))

	res, err := h.Run(context.Background(), Request{
		Code:     "c",
		Language: "ruby",
		Tests: []Test{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "1 2", ExpectedOutput: "4"}, // wrong answer
			{Input: "x", ExpectedOutput: ""},    // matching output but crashed
			{Input: "5", ExpectedOutput: "5\n"}, // trailing newline already stripped
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TestsPassed)
	require.Len(t, res.Executions, 4)
	assert.True(t, res.Executions[0].Passed())
	assert.False(t, res.Executions[1].Passed())
	assert.False(t, res.Executions[2].Passed())
	require.NotNil(t, res.Executions[2].Stderr)
	assert.False(t, res.Executions[3].Passed())
}

func TestRunFailFast(t *testing.T) {
	var calls int
	exec := ExecutorFunc(func(ctx context.Context, req dispatch.Request) (dispatch.Execution, error) {
		calls++
		if calls == 3 {
			return dispatch.Execution{}, fmt.Errorf("%w: connection refused", engine.ErrUnreachable)
		}
		return summer(ctx, req)
	})

	var seen []int
	res, err := New(exec).Run(context.Background(), Request{
		Code:     "c",
		Language: "ruby",
		Tests: []Test{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "2"},
			{Input: "3", ExpectedOutput: "3"},
			{Input: "4", ExpectedOutput: "4"},
		},
	}, func(i int, e ExecutionWithTest) { seen = append(seen, i) })

	require.ErrorIs(t, err, engine.ErrUnreachable)
	assert.Empty(t, res.Executions)
	assert.Zero(t, res.TestsPassed)
	assert.Equal(t, 3, calls, "fourth test never dispatched")
	assert.Equal(t, []int{0, 1}, seen)
}

func TestRunPassesRequestFields(t *testing.T) {
	var got []dispatch.Request
	exec := ExecutorFunc(func(ctx context.Context, req dispatch.Request) (dispatch.Execution, error) {
		got = append(got, req)
		return dispatch.Execution{DidNotCrash: true}, nil
	})

	version := "3.0.1"
	timeout := int64(1500)
	_, err := New(exec).Run(context.Background(), Request{
		Code:       "code",
		Language:   "rb",
		Version:    &version,
		RunTimeout: &timeout,
		Tests:      []Test{{Input: "a"}, {Input: "b"}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, got, 2)
	for i, want := range []string{"a", "b"} {
		assert.Equal(t, "code", got[i].Code)
		assert.Equal(t, "rb", got[i].Language)
		assert.Equal(t, "3.0.1", *got[i].Version)
		assert.Equal(t, int64(1500), *got[i].RunTimeout)
		assert.Equal(t, want, *got[i].Input)
	}
}

func TestRunNoTests(t *testing.T) {
	res, err := New(ExecutorFunc(summer)).Run(context.Background(), Request{Code: "c", Language: "ruby"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Executions)
	assert.Empty(t, res.Executions)
	assert.Zero(t, res.TestsPassed)
}
