package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterfaceForAddressWithUnownedAddressReturnsNil(t *testing.T) {
	require.Nil(t, interfaceForAddress("203.0.113.1"))
}

func TestInterfaceForAddressWithGarbageReturnsNil(t *testing.T) {
	require.Nil(t, interfaceForAddress("not-an-ip"))
}

func TestDialSenderWithInvalidInterfaceFallsBackAndWarns(t *testing.T) {
	conn, warning, err := DialSender("not-an-interface", false)
	require.NoError(t, err)
	defer conn.Close()
	require.Contains(t, warning, fallbackInterface)
}

func TestDialSenderWithNoInterfaceHasNoWarning(t *testing.T) {
	conn, warning, err := DialSender("", true)
	require.NoError(t, err)
	defer conn.Close()
	require.Empty(t, warning)
}

func TestSenderReceiverRoundTripOverLoopback(t *testing.T) {
	recv, err := ListenReceiver("")
	require.NoError(t, err)
	defer recv.Close()

	send, _, err := DialSender("", true)
	require.NoError(t, err)
	defer send.Close()

	want := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, send.Send(want))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, _, ok := recv.TryReceive(); ok {
			require.Equal(t, want, data)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for looped-back datagram")
}

func TestTryReceiveWithNoDatagramsReturnsNotOK(t *testing.T) {
	recv, err := ListenReceiver("")
	require.NoError(t, err)
	defer recv.Close()

	_, _, ok := recv.TryReceive()
	require.False(t, ok)
}
