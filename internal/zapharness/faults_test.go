package zapharness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-zap/pkg/wire"
)

func TestFaultModeNames(t *testing.T) {
	for mode, name := range faultNames {
		got, err := ParseFaultMode(name)
		require.NoError(t, err)
		assert.Equal(t, mode, got)

		text, err := mode.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))
	}

	mode, err := ParseFaultMode("")
	require.NoError(t, err)
	assert.Equal(t, FaultNone, mode)

	_, err = ParseFaultMode("sometimes")
	assert.Error(t, err)

	var f FaultMode
	require.NoError(t, f.UnmarshalText([]byte("too-many-parts")))
	assert.Equal(t, FaultTooManyParts, f)

	_, err = FaultMode(99).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "fault(99)", FaultMode(99).String())
}

func TestEveryFaultHasStrategy(t *testing.T) {
	for mode := range faultNames {
		_, err := strategyFor(mode)
		assert.NoError(t, err, mode.String())
	}
	_, err := strategyFor(FaultMode(99))
	assert.Equal(t, ErrCatSetup, CategoryOf(err))
}

func testRequest() *wire.ZAPRequest {
	return &wire.ZAPRequest{
		Version:   wire.ZAPVersion,
		Sequence:  "42",
		Domain:    TestZAPDomain,
		Address:   "127.0.0.1",
		RoutingID: DefaultRoutingID,
		Mechanism: wire.MechanismNull,
	}
}

func TestReplyShapingOnSuccess(t *testing.T) {
	tests := []struct {
		mode     FaultMode
		version  string
		sequence string
		status   string
		frames   int
	}{
		{FaultNone, "1.0", "42", "200", 6},
		{FaultStatusTemporaryFailure, "1.0", "42", "300", 6},
		{FaultStatusInternalError, "1.0", "42", "500", 6},
		{FaultStatusInvalid, "1.0", "42", "invalid_status", 6},
		{FaultWrongVersion, "invalid_version", "42", "200", 6},
		{FaultWrongRequestID, "1.0", "invalid_request_id", "200", 6},
		{FaultTooManyParts, "1.0", "42", "200", 7},
		{FaultDoNotRecv, "1.0", "42", "200", 6},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s, err := strategyFor(tt.mode)
			require.NoError(t, err)

			frames := s.replyFrames(testRequest(), true)
			require.Len(t, frames, tt.frames)
			assert.Equal(t, tt.version, string(frames[0]))
			assert.Equal(t, tt.sequence, string(frames[1]))
			assert.Equal(t, tt.status, string(frames[2]))
			assert.Equal(t, "OK", string(frames[3]))
			assert.Equal(t, "anonymous", string(frames[4]))
			if tt.frames == 7 {
				assert.Empty(t, frames[5], "extra frame sits before metadata")
			}
		})
	}
}

func TestReplyShapingOnFailure(t *testing.T) {
	for _, mode := range []FaultMode{FaultNone, FaultStatusTemporaryFailure, FaultStatusInvalid, FaultTooManyParts} {
		s, err := strategyFor(mode)
		require.NoError(t, err)

		frames := s.replyFrames(testRequest(), false)
		require.Len(t, frames, 6, mode.String())
		assert.Equal(t, "400", string(frames[2]), mode.String())
		assert.Equal(t, "Invalid client public key", string(frames[3]))
		assert.Empty(t, frames[4])
	}

	s, _ := strategyFor(FaultWrongVersion)
	assert.Equal(t, "invalid_version", string(s.replyFrames(testRequest(), false)[0]))
	s, _ = strategyFor(FaultWrongRequestID)
	assert.Equal(t, "invalid_request_id", string(s.replyFrames(testRequest(), false)[1]))
}

func TestDoNotSendProducesNothing(t *testing.T) {
	s, err := strategyFor(FaultDoNotSend)
	require.NoError(t, err)
	assert.Nil(t, s.replyFrames(testRequest(), true))
	assert.Nil(t, s.replyFrames(testRequest(), false))
}

func TestShapedRepliesParse(t *testing.T) {
	tests := []struct {
		mode FaultMode
		code wire.ProtocolCode
	}{
		{FaultWrongVersion, wire.ProtocolZAPBadVersion},
		{FaultWrongRequestID, wire.ProtocolZAPBadRequestID},
		{FaultStatusInvalid, wire.ProtocolZAPInvalidStatusCode},
		{FaultTooManyParts, wire.ProtocolZAPMalformedReply},
	}
	for _, tt := range tests {
		s, _ := strategyFor(tt.mode)
		_, err := wire.ParseZAPReply(s.replyFrames(testRequest(), true), "42")
		code, ok := wire.ProtocolCodeOf(err)
		require.True(t, ok, tt.mode.String())
		assert.Equal(t, tt.code, code, tt.mode.String())
	}

	s, _ := strategyFor(FaultNone)
	reply, err := wire.ParseZAPReply(s.replyFrames(testRequest(), true), "42")
	require.NoError(t, err)
	assert.True(t, reply.Accepted())
}
