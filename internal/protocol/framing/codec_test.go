package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Requests(t *testing.T) {
	for _, msg := range []Message{Subscribe(), Unsubscribe()} {
		data, err := Encode(msg)
		require.NoError(t, err)
		assert.Len(t, data, 1)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg.Type, got.Type)
		assert.Nil(t, got.Data)
	}
}

func TestEncodeDecode_Data(t *testing.T) {
	msg := NewData(300, 2, 5, []byte("hello"))

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, got.Data)
	assert.Equal(t, TypeData, got.Type)
	assert.EqualValues(t, 300, got.Data.Generation)
	assert.EqualValues(t, 2, got.Data.Seq)
	assert.EqualValues(t, 5, got.Data.Total)
	assert.Equal(t, []byte("hello"), got.Data.Payload)
}

func TestDecode_CopiesPayload(t *testing.T) {
	data, err := Encode(NewData(1, 0, 1, []byte("abc")))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	// 复用读缓冲区不应影响已解码的分片
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, []byte("abc"), got.Data.Payload)
}

func TestDecode_Malformed(t *testing.T) {
	valid, err := Encode(NewData(7, 0, 1, []byte("payload")))
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrEmptyFrame},
		{"unknown type", []byte{0x7f}, ErrUnknownType},
		{"subscribe with trailing", []byte{byte(TypeSubscribe), 0x00}, ErrTrailingBytes},
		{"header only", []byte{byte(TypeData)}, ErrTruncated},
		{"truncated varint", []byte{byte(TypeData), 0x80}, ErrTruncated},
		{"short chunk", valid[:len(valid)-2], ErrTruncated},
		{"trailing chunk bytes", append(append([]byte{}, valid...), 0x01), ErrTrailingBytes},
		{"zero total", []byte{byte(TypeData), 0x01, 0x00, 0x00, 0x00}, ErrInvalidSequence},
		{"seq beyond total", []byte{byte(TypeData), 0x01, 0x02, 0x02, 0x00}, ErrInvalidSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			require.Error(t, err)

			var fe *FramingError
			assert.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_Invalid(t *testing.T) {
	_, err := Encode(Message{Type: TypeData})
	assert.ErrorIs(t, err, ErrMissingData)

	_, err = Encode(Message{Type: 0x42})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSplitDataMsgs(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 10)

	msgs, err := SplitDataMsgsSize(payload, 4, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	var joined []byte
	for i, m := range msgs {
		assert.EqualValues(t, 4, m.Data.Generation)
		assert.EqualValues(t, i, m.Data.Seq)
		assert.EqualValues(t, 3, m.Data.Total)
		joined = append(joined, m.Data.Payload...)
	}
	assert.Equal(t, payload, joined)
	assert.Len(t, msgs[2].Data.Payload, 2)
}

func TestSplitDataMsgs_Empty(t *testing.T) {
	msgs, err := SplitDataMsgs(nil, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].Data.Payload)
	assert.EqualValues(t, 1, msgs[0].Data.Total)
}

func TestSplitDataMsgs_FitsDatagram(t *testing.T) {
	payload := bytes.Repeat([]byte{1}, MaxChunkSize*2+1)

	msgs, err := SplitDataMsgs(payload, 1<<40)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for _, m := range msgs {
		data, err := Encode(m)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), MaxDatagramSize)
	}
}

func TestSplitDataMsgs_Limits(t *testing.T) {
	_, err := SplitDataMsgsSize([]byte("x"), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = SplitDataMsgsSize([]byte("x"), 1, MaxChunkSize+1)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = SplitDataMsgsSize(make([]byte, MaxChunksPerPayload+1), 1, 1)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "subscribe", TypeSubscribe.String())
	assert.True(t, TypeUnsubscribe.IsRequest())
	assert.False(t, TypeData.IsRequest())
	assert.Equal(t, "unknown(0x42)", MessageType(0x42).String())
}
