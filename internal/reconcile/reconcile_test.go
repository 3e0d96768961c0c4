package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dean-jl/fwallow/internal/firewall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRuleAPI implements the firewall.RuleAPI interface for testing
type MockRuleAPI struct {
	mock.Mock
}

func (m *MockRuleAPI) ListRules(ctx context.Context) ([]firewall.Rule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]firewall.Rule), args.Error(1)
}

func (m *MockRuleAPI) InsertRule(ctx context.Context, value firewall.RuleValue) (string, error) {
	args := m.Called(ctx, value)
	return args.String(0), args.Error(1)
}

func (m *MockRuleAPI) UpdateRule(ctx context.Context, id string, value firewall.RuleValue) error {
	args := m.Called(ctx, id, value)
	return args.Error(0)
}

func (m *MockRuleAPI) RemoveRule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteSingleUpdate(t *testing.T) {
	api := new(MockRuleAPI)
	plan := BuildPlan([]firewall.Rule{managedRule("r1", base)}, [][]string{{"10.0.0.1"}}, firewall.ModeDeny, base, "")

	api.On("UpdateRule", mock.Anything, "r1", mock.Anything).Return(nil)

	res, err := New(api, testLogger()).Execute(context.Background(), plan)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 0, res.Removed)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "InsertRule", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "RemoveRule", mock.Anything, mock.Anything)
}

func TestExecuteGrowthIntoChunking(t *testing.T) {
	api := new(MockRuleAPI)
	chunks := [][]string{{"10.0.0.1"}, {"10.0.0.2"}}
	plan := BuildPlan([]firewall.Rule{managedRule("r1", base)}, chunks, firewall.ModeDeny, base, "")

	api.On("RemoveRule", mock.Anything, "r1").Return(nil).Once()
	api.On("InsertRule", mock.Anything, mock.Anything).Return("new_id", nil).Times(2)

	res, err := New(api, testLogger()).Execute(context.Background(), plan)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 2, res.Inserted)
	api.AssertExpectations(t)
}

func TestExecuteRemoveFailureIsPartial(t *testing.T) {
	api := new(MockRuleAPI)
	plan := Plan{Ops: []Op{
		{Kind: OpRemove, RuleID: "r1", Name: base},
		{Kind: OpRemove, RuleID: "r2", Name: firewall.PartName(base, 1, 2)},
		{Kind: OpInsert, Name: base, Value: firewall.RuleValue{Name: base}},
	}}

	serverErr := &firewall.APIError{Kind: firewall.KindServer, StatusCode: 500, Message: "boom"}
	api.On("RemoveRule", mock.Anything, "r1").Return(serverErr).Once()
	api.On("RemoveRule", mock.Anything, "r2").Return(nil).Once()
	api.On("InsertRule", mock.Anything, mock.Anything).Return("new_id", nil).Once()

	res, err := New(api, testLogger()).Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Inserted)
	assert.Len(t, res.Failures, 1)
	assert.Equal(t, "r1", res.Failures[0].Op.RuleID)
	// The failed remove must not stop the remaining operations.
	api.AssertExpectations(t)
}

func TestExecuteInsertFailureAborts(t *testing.T) {
	api := new(MockRuleAPI)
	plan := Plan{Ops: []Op{
		{Kind: OpInsert, Name: firewall.PartName(base, 1, 2), Value: firewall.RuleValue{}},
		{Kind: OpInsert, Name: firewall.PartName(base, 2, 2), Value: firewall.RuleValue{}},
	}}

	clientErr := &firewall.APIError{Kind: firewall.KindClient, StatusCode: 400, Message: "bad request"}
	api.On("InsertRule", mock.Anything, mock.Anything).Return("", clientErr).Once()

	res, err := New(api, testLogger()).Execute(context.Background(), plan)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartialFailure)
	var apiErr *firewall.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, res.Inserted)
	// Execution stopped at the first fatal insert.
	api.AssertNumberOfCalls(t, "InsertRule", 1)
}

func TestExecuteNoop(t *testing.T) {
	api := new(MockRuleAPI)
	res, err := New(api, testLogger()).Execute(context.Background(), Plan{})
	assert.NoError(t, err)
	assert.Equal(t, Result{}, res)
	api.AssertNotCalled(t, "InsertRule", mock.Anything, mock.Anything)
}
