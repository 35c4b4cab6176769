package shmchannel

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempChannelName(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("/sipbridge_test_%d", os.Getpid())
	t.Cleanup(func() { _ = Unlink(name) })
	return name
}

func TestWriteReadRoundTrip(t *testing.T) {
	name := tempChannelName(t)

	prod, err := OpenOrCreate(name, RoleProducer, 4, 64)
	require.NoError(t, err)
	defer prod.Close()

	cons, err := OpenOrCreate(name, RoleConsumer, 4, 64)
	require.NoError(t, err)
	defer cons.Close()

	prod.WriteFrame([]byte("hello"))

	frame, ok := cons.ReadFrame()
	require.True(t, ok)
	require.Equal(t, "hello", string(frame))
}

func TestReadEmptyReturnsFalse(t *testing.T) {
	name := tempChannelName(t)

	ch, err := OpenOrCreate(name, RoleConsumer, 4, 64)
	require.NoError(t, err)
	defer ch.Close()

	_, ok := ch.ReadFrame()
	require.False(t, ok, "expected no frame on empty ring")
}

func TestDropOldestOnFull(t *testing.T) {
	name := tempChannelName(t)

	ch, err := OpenOrCreate(name, RoleProducer, 2, 64)
	require.NoError(t, err)
	defer ch.Close()

	ch.WriteFrame([]byte("first"))
	ch.WriteFrame([]byte("second"))
	ch.WriteFrame([]byte("third")) // ring capacity 2: "first" is dropped

	frame, ok := ch.ReadFrame()
	require.True(t, ok)
	require.Equal(t, "second", string(frame))

	frame, ok = ch.ReadFrame()
	require.True(t, ok)
	require.Equal(t, "third", string(frame))
}

func TestTruncatesOversizedFrame(t *testing.T) {
	name := tempChannelName(t)

	ch, err := OpenOrCreate(name, RoleProducer, 2, 16) // frameSize 16; the 8-byte length prefix sits outside it
	require.NoError(t, err)
	defer ch.Close()

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}
	ch.WriteFrame(payload)

	frame, ok := ch.ReadFrame()
	require.True(t, ok)
	require.Len(t, frame, 16) // truncated to frameSize(16)
}

func TestOpenOrCreateIdempotent(t *testing.T) {
	name := tempChannelName(t)

	a, err := OpenOrCreate(name, RoleProducer, 4, 64)
	require.NoError(t, err)
	defer a.Close()

	a.WriteFrame([]byte("persisted"))

	b, err := OpenOrCreate(name, RoleConsumer, 4, 64)
	require.NoError(t, err)
	defer b.Close()

	frame, ok := b.ReadFrame()
	require.True(t, ok, "second attacher did not see first's frame")
	require.Equal(t, "persisted", string(frame))
}
