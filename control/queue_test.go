package control

import (
	"errors"
	"testing"

	"github.com/Haenisch/MIDI-over-LAN/errs"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueFillsThenRejects(t *testing.T) {
	q := NewCommandQueue()
	for i := 0; i < queueCapacity; i++ {
		require.NoError(t, q.Send(CommandMessage{Command: Pause}))
	}
	err := q.Send(CommandMessage{Command: Pause})
	require.True(t, errors.Is(err, errs.ErrQueueFull))
	require.Equal(t, queueCapacity, q.Depth())
}

func TestCommandQueueTryReceiveDrainsInOrder(t *testing.T) {
	q := NewCommandQueue()
	require.NoError(t, q.Send(CommandMessage{Command: Pause}))
	require.NoError(t, q.Send(CommandMessage{Command: Resume}))

	msg, ok := q.TryReceive()
	require.True(t, ok)
	require.Equal(t, Pause, msg.Command)

	msg, ok = q.TryReceive()
	require.True(t, ok)
	require.Equal(t, Resume, msg.Command)

	_, ok = q.TryReceive()
	require.False(t, ok)
}

func TestInfoQueueFillsThenRejects(t *testing.T) {
	q := NewInfoQueue()
	for i := 0; i < queueCapacity; i++ {
		require.NoError(t, q.Send(InfoMessage{Info: HelloPacketInfo}))
	}
	err := q.Send(InfoMessage{Info: HelloPacketInfo})
	require.True(t, errors.Is(err, errs.ErrQueueFull))
}

func TestLogQueueRecordsChannelRangesInOrder(t *testing.T) {
	q := NewLogQueue()
	q.Send(LogRecord{Component: "sender", Level: "INFO", Message: "first"})
	q.Send(LogRecord{Component: "sender", Level: "WARN", Message: "second"})

	first := q.Receive()
	require.Equal(t, "first", first.Message)

	second, ok := <-q.Records()
	require.True(t, ok)
	require.Equal(t, "second", second.Message)
}

func TestCommandStringNames(t *testing.T) {
	require.Equal(t, "RESTART", Restart.String())
	require.Equal(t, "SET_NETWORK_INTERFACE", SetNetworkInterface.String())
	require.Equal(t, "UNKNOWN_COMMAND", Command(999).String())
}

func TestInfoStringNames(t *testing.T) {
	require.Equal(t, "HELLO_PACKET_INFO", HelloPacketInfo.String())
	require.Equal(t, "NETWORK_INTERFACE_OF_SENDING_WORKER", NetworkInterfaceOfSendingWorker.String())
	require.Equal(t, "UNKNOWN_INFO", Info(999).String())
}
