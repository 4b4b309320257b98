package tcp

import (
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

func TestListenConnectUpgrade(t *testing.T) {
	conf := common.DefaultServerConfig()
	conf.Endpoint = "127.0.0.1:0"
	conf.Socket = common.SocketConf{ReadBufferSize: 64 * 1024, WriteBufferSize: 64 * 1024}

	server := NewServerConnector()
	assert.Equal(t, "tcp", server.GetName())
	ln, err := server.Listen(conf)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client := NewClientConnector()
	conn, err := client.Connect(ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, client.UpgradeConnection(conn, conf.Socket, conf.TCP))

	select {
	case sc := <-accepted:
		defer sc.Close()
		require.NoError(t, server.UpgradeConnection(sc, conf.Socket, conf.TCP))
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
}

func TestUpgradeIgnoresOtherConnections(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	assert.NoError(t, upgradeConnection(a, common.SocketConf{}, common.TCPConf{TCPNoDelay: true}))
}

func TestListenFailsOnBusyPort(t *testing.T) {
	conf := common.DefaultServerConfig()
	conf.Endpoint = "127.0.0.1:0"

	ln, err := NewServerConnector().Listen(conf)
	require.NoError(t, err)
	defer ln.Close()

	conf.Endpoint = ln.Addr().String()
	_, err = NewServerConnector().Listen(conf)
	assert.Error(t, err)
}
