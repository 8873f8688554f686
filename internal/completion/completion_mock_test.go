package completion

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"llmcascade/internal/backend"
	"llmcascade/internal/backend/backendmock"
	"llmcascade/internal/grammar"
)

// TestRunCallsBackendExactlyOnceOnSuccess uses a gomock-generated-style
// mock, rather than the hand-rolled fakeBackend in completion_test.go, to
// assert that Run calls the backend exactly once.
func TestRunCallsBackendExactlyOnceOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mb := backendmock.NewMockBackend(ctrl)
	mb.EXPECT().Name().Return("mock").AnyTimes()
	mb.EXPECT().SupportsLogitBias().Return(false).AnyTimes()
	mb.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		Return(&backend.CompletionResponse{Content: "true", StopReason: backend.StopEOS}, nil).
		Times(1)

	e := New(mb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Grammar: grammar.Boolean{},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    3,
		},
	}

	res, err := e.Run(context.Background(), req, 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PrimitiveValue != true {
		t.Errorf("primitive value = %v, want true", res.PrimitiveValue)
	}
}
