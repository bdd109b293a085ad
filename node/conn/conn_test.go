package conn

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnExchange(t *testing.T) {
	a, err := NewConn(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	defer a.Close()

	b, err := NewConn(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	defer b.Close()

	_, err = a.WriteToUDPAddrPort([]byte("frame"), b.LocalAddr())
	require.NoError(t, err)

	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, from, err := b.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(buf[:n]))
	assert.Equal(t, a.LocalAddr(), from)
	assert.True(t, from.Addr().Is4())
}
