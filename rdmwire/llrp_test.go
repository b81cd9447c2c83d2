// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLLRPProbeRequestRoundTrip(t *testing.T) {
	header := LLRPHeader{DestCID: uuid.New(), TransactionNumber: 7}
	msg := LLRPProbeRequestMsg{
		LowerUID:  UID{Manu: 0x6574, ID: 0x00000000},
		UpperUID:  UID{Manu: 0x6574, ID: 0xFFFFFFFF},
		Filter:    0,
		KnownUIDs: []UID{{Manu: 0x1234, ID: 1}, {Manu: 0x1234, ID: 2}},
	}

	buf := make([]byte, SizeLLRPProbeRequest(msg))
	n, err := PackLLRPProbeRequest(buf, header, msg)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	parsed, err := ParseLLRPMessage(buf)
	require.NoError(t, err)
	require.Equal(t, VectorLLRPProbeRequest, parsed.Vector)
	require.Equal(t, header, parsed.Header)
	require.NotNil(t, parsed.ProbeRequest)
	require.Equal(t, msg, *parsed.ProbeRequest)
}

func TestLLRPProbeReplyRoundTrip(t *testing.T) {
	header := LLRPHeader{DestCID: uuid.New(), TransactionNumber: 7}
	msg := LLRPProbeReplyMsg{
		TargetUID:       UID{Manu: 0x6574, ID: 1},
		ComponentType:   LLRPComponentTypeRPTDevice,
		HardwareAddress: [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x33},
	}

	buf := make([]byte, SizeLLRPProbeReply())
	n, err := PackLLRPProbeReply(buf, header, msg)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	parsed, err := ParseLLRPMessage(buf)
	require.NoError(t, err)
	require.Equal(t, VectorLLRPProbeReply, parsed.Vector)
	require.NotNil(t, parsed.ProbeReply)
	require.Equal(t, msg, *parsed.ProbeReply)
}

func TestLLRPRDMCmdRoundTrip(t *testing.T) {
	header := LLRPHeader{DestCID: uuid.New(), TransactionNumber: 42}
	cmd := RDMPacket{
		DestUID:      UID{Manu: 0x6574, ID: 1},
		SrcUID:       UID{Manu: 0x1234, ID: 2},
		CommandClass: RDMCCGetCommand,
		ParamID:      PIDDeviceInfo,
		ParamData:    []byte{1, 2, 3},
	}

	buf := make([]byte, SizeLLRPRDMCmd(cmd))
	n, err := PackLLRPRDMCmd(buf, header, cmd)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	parsed, err := ParseLLRPMessage(buf)
	require.NoError(t, err)
	require.Equal(t, VectorLLRPRDMCmd, parsed.Vector)
	require.NotNil(t, parsed.RDMCmd)
	require.Equal(t, cmd, *parsed.RDMCmd)
}

func TestLLRPProbeRequestTooManyKnownUIDs(t *testing.T) {
	msg := LLRPProbeRequestMsg{KnownUIDs: make([]UID, LLRPKnownUIDSize+1)}
	buf := make([]byte, SizeLLRPProbeRequest(msg))
	_, err := PackLLRPProbeRequest(buf, LLRPHeader{}, msg)
	require.Error(t, err)
}
