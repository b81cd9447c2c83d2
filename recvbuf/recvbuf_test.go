// SPDX-License-Identifier: GPL-3.0-or-later

package recvbuf_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rdmnet-go/rdmnet/rdmwire"
	"github.com/rdmnet-go/rdmnet/recvbuf"
)

func packNull(t *testing.T, senderCID rdmwire.CID) []byte {
	t.Helper()
	body := make([]byte, rdmwire.SizeBrokerNull())
	n, err := rdmwire.PackBrokerNull(body)
	require.NoError(t, err)
	body = body[:n]

	root := make([]byte, rdmwire.SizeRootLayer(len(body)))
	n, err = rdmwire.PackRootLayer(root, rdmwire.VectorRootBroker, senderCID, body)
	require.NoError(t, err)
	root = root[:n]

	pre := make([]byte, rdmwire.TCPPreambleSize)
	_, err = rdmwire.PackTCPPreamble(pre, len(root))
	require.NoError(t, err)

	return append(pre, root...)
}

func TestFeedWholePDU(t *testing.T) {
	cid := uuid.New()
	wire := packNull(t, cid)

	buf := recvbuf.New(recvbuf.Options{})
	msgs, err := buf.Feed(wire)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, rdmwire.VectorRootBroker, msgs[0].RootVector)
	require.Equal(t, cid, msgs[0].SenderCID)
	require.NotNil(t, msgs[0].Broker)
	require.Equal(t, 0, buf.Residual())
}

func TestFeedShortReads(t *testing.T) {
	cid := uuid.New()
	wire := packNull(t, cid)

	buf := recvbuf.New(recvbuf.Options{})

	msgs, err := buf.Feed(wire[:5])
	require.NoError(t, err)
	require.Empty(t, msgs)

	msgs, err = buf.Feed(wire[5:])
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestFeedTwoPDUsOneRead(t *testing.T) {
	cid := uuid.New()
	wire := append(packNull(t, cid), packNull(t, cid)...)

	buf := recvbuf.New(recvbuf.Options{})
	msgs, err := buf.Feed(wire)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func packNotification(t *testing.T, senderCID rdmwire.CID, n int) []byte {
	t.Helper()
	header := rdmwire.RPTHeader{
		SourceUID: rdmwire.UID{Manu: 0x6574, ID: 1},
		DestUID:   rdmwire.UID{Manu: 0x6574, ID: 2},
		Seqnum:    1,
	}
	cmds := make([]rdmwire.RDMPacket, n)
	for i := range cmds {
		cmds[i] = rdmwire.RDMPacket{
			DestUID:      header.DestUID,
			SrcUID:       header.SourceUID,
			CommandClass: rdmwire.RDMCCGetCommandResponse,
			ParamID:      rdmwire.PIDDeviceInfo,
			ParamData:    []byte{byte(i)},
		}
	}
	body := make([]byte, rdmwire.SizeRPTNotification(cmds))
	bn, err := rdmwire.PackRPTNotification(body, header, cmds)
	require.NoError(t, err)
	body = body[:bn]

	root := make([]byte, rdmwire.SizeRootLayer(len(body)))
	rn, err := rdmwire.PackRootLayer(root, rdmwire.VectorRootRPT, senderCID, body)
	require.NoError(t, err)
	root = root[:rn]

	pre := make([]byte, rdmwire.TCPPreambleSize)
	_, err = rdmwire.PackTCPPreamble(pre, len(root))
	require.NoError(t, err)
	return append(pre, root...)
}

func TestFeedChunksLongNotification(t *testing.T) {
	cid := uuid.New()
	wire := packNotification(t, cid, 5)

	buf := recvbuf.New(recvbuf.Options{MaxPartialListEntries: 2})
	msgs, err := buf.Feed(wire)
	require.NoError(t, err)
	require.Len(t, msgs, 3) // 2 + 2 + 1

	require.True(t, msgs[0].MoreComing)
	require.True(t, msgs[1].MoreComing)
	require.False(t, msgs[2].MoreComing)

	var total int
	for _, m := range msgs {
		require.NotNil(t, m.RPT)
		total += len(m.RPT.RDMBufs)
	}
	require.Equal(t, 5, total)
}

func TestFeedOversizedPDUIsFatal(t *testing.T) {
	pre := make([]byte, rdmwire.TCPPreambleSize)
	_, err := rdmwire.PackTCPPreamble(pre, recvbuf.MaxSize+1)
	require.NoError(t, err)

	buf := recvbuf.New(recvbuf.Options{})
	_, err = buf.Feed(pre)
	require.ErrorIs(t, err, recvbuf.ErrPDUTooLarge)
}
