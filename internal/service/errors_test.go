package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/transcribe"
)

func TestKind_StatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, KindNotFound.StatusCode())
	assert.Equal(t, http.StatusBadRequest, KindInvalidArgument.StatusCode())
	assert.Equal(t, http.StatusBadGateway, KindUpstream.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.StatusCode())
	assert.Equal(t, "InvalidArgument", KindInvalidArgument.String())
}

func TestWrapError_PicksKindFromSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: fmt.Errorf("%w: a.wav", storage.ErrNotFound), want: KindNotFound},
		{name: "bad name", err: storage.ErrInvalidName, want: KindInvalidArgument},
		{name: "too large", err: storage.ErrTooLarge, want: KindInvalidArgument},
		{name: "format", err: fmt.Errorf("%w: %q", subtitle.ErrUnsupportedFormat, "sub"), want: KindInvalidArgument},
		{name: "model", err: fmt.Errorf("%w: boom", transcribe.ErrFailed), want: KindUpstream},
		{name: "canceled", err: context.Canceled, want: KindInternal},
		{name: "unknown", err: errors.New("disk on fire"), want: KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapError(tt.err, KindUpstream, "")
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWrapError_KeepsTaggedErrors(t *testing.T) {
	t.Parallel()

	inner := NewError(KindNotFound, "File not found")
	wrapped := WrapError(fmt.Errorf("outer: %w", inner), KindInternal, "ignored")
	assert.Same(t, inner, wrapped)

	msg := WrapError(errors.New("boom"), KindInternal, "save upload")
	assert.Equal(t, "save upload: boom", Message(msg))
	assert.Contains(t, msg.WithContext("filename", "a.wav").Error(), "filename=a.wav")
}

func TestKindOf_Untagged(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
	assert.True(t, IsKind(NewError(KindUpstream, "x"), KindUpstream))
}

func TestSafeExecute(t *testing.T) {
	t.Parallel()

	err := SafeExecute(func() error { panic("bad") })
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Contains(t, Message(err), "bad")

	require.NoError(t, SafeExecute(func() error { return nil }))
}
