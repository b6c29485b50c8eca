package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type ctxKey string

type fakeShutdowner struct {
	name        string
	calls       *[]string
	receivedCtx context.Context
	err         error
}

func (f *fakeShutdowner) Shutdown(ctx context.Context) error {
	f.receivedCtx = ctx
	*f.calls = append(*f.calls, f.name)
	return f.err
}

type fakeCloser struct {
	name  string
	calls *[]string
}

func (c *fakeCloser) Close() error {
	*c.calls = append(*c.calls, c.name)
	return nil
}

func TestNewCleanup_FlushesListsBeforeClosingStore(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey("test"), "marker")
	var callOrder []string

	hub := &fakeShutdowner{name: "hubShutdown", calls: &callOrder}
	authenticator := &fakeShutdowner{name: "authShutdown", calls: &callOrder}
	sink := &fakeCloser{name: "sinkClose", calls: &callOrder}
	store := &fakeCloser{name: "storeClose", calls: &callOrder}

	newCleanup(hub, authenticator, sink, store)(ctx)

	require.Equal(t, []string{"hubShutdown", "authShutdown", "sinkClose", "storeClose"}, callOrder)
	require.Equal(t, "marker", hub.receivedCtx.Value(ctxKey("test")))
	require.Equal(t, "marker", authenticator.receivedCtx.Value(ctxKey("test")))
}

func TestNewCleanup_ContinuesAfterFailures(t *testing.T) {
	var callOrder []string

	hub := &fakeShutdowner{name: "hubShutdown", calls: &callOrder, err: errors.New("timeout")}
	store := &fakeCloser{name: "storeClose", calls: &callOrder}

	newCleanup(hub, nil, nil, store)(context.Background())

	require.Equal(t, []string{"hubShutdown", "storeClose"}, callOrder)
}
