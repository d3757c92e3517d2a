package events

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmitWritesBothSinks(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	var buf bytes.Buffer
	traceCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)

	log := New(zap.New(core), zap.New(traceCore))
	log.Emit(OfferSent, zap.Int64("order_id", 7), zap.Int64("master_id", 3), zap.Int("round", 1))

	entries := recorded.FilterMessage(string(OfferSent)).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "offer_sent", fields["event"])
	require.Equal(t, int64(7), fields["order_id"])

	out := buf.String()
	require.True(t, strings.Contains(out, "offer_sent order_id=7 master_id=3 round=1"), out)
}

func TestFailUsesErrorLevel(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	log := New(zap.New(core), nil)

	log.Fail(errors.New("boom"), zap.Int64("order_id", 1))

	entries := recorded.FilterMessage(string(Error)).All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, "boom", entries[0].ContextMap()["error"])
}
