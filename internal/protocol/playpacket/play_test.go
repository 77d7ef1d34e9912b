package playpacket

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/model"
)

func TestKeepAlive_RoundTrip(t *testing.T) {
	want := KeepAlive{ID: 123456789}
	got, err := DecodeKeepAlive(bufio.NewReader(bytes.NewReader(want.Encode())))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClickContainer_RoundTripWithEmptySlot(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)          // container id
	buf.WriteByte(0)          // state id varint 0
	buf.Write([]byte{0, 5})   // slot 5
	buf.WriteByte(0)          // button
	buf.WriteByte(0)          // action pickup
	buf.WriteByte(0)          // changed count 0
	buf.WriteByte(0)          // carried item count 0 (empty)

	got, err := DecodeClickContainer(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, int8(1), got.ContainerID)
	require.Equal(t, int16(5), got.Slot)
	require.True(t, got.CarriedItem.Empty())
}

func TestSetContainerContent_EncodeWithStacks(t *testing.T) {
	p := SetContainerContent{
		ContainerID: 1,
		StateID:     3,
		Slots: []*model.ItemStack{
			nil,
			{ItemID: 7, Count: 1},
		},
		CarriedItem: nil,
	}
	encoded := p.Encode()
	require.NotEmpty(t, encoded)
}

func TestUpdateTime_Encode(t *testing.T) {
	p := UpdateTime{WorldAge: 100, TimeOfDay: 6000}
	encoded := p.Encode()
	require.Len(t, encoded, 16)
}
