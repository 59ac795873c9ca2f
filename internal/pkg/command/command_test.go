package command

import (
	"context"
	"testing"

	"github.com/anicoll/lifesmart-integration/internal/pkg/model"
	"github.com/anicoll/lifesmart-integration/internal/pkg/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type channelWrite struct {
	agt, me, idx, typeCode string
	val                    int64
}

type fakeAPI struct {
	writes  []channelWrite
	code    int
	keys    []rest.SendKeysParams
	acKeys  []rest.SendACKeysParams
}

func (f *fakeAPI) SetChannel(_ context.Context, agt, me, idx, typeCode string, val int64) (int, error) {
	f.writes = append(f.writes, channelWrite{agt: agt, me: me, idx: idx, typeCode: typeCode, val: val})
	return f.code, nil
}

func (f *fakeAPI) SendKeys(_ context.Context, p rest.SendKeysParams) error {
	f.keys = append(f.keys, p)
	return nil
}

func (f *fakeAPI) SendACKeys(_ context.Context, p rest.SendACKeysParams) error {
	f.acKeys = append(f.acKeys, p)
	return nil
}

func TestTurnOnOff(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	require.NoError(t, enc.TurnOn(ctx, "agt", "me1", "L1"))
	require.NoError(t, enc.TurnOff(ctx, "agt", "me1", "L1"))

	require.Len(t, api.writes, 2)
	assert.Equal(t, channelWrite{agt: "agt", me: "me1", idx: "L1", typeCode: "0x81", val: 1}, api.writes[0])
	assert.Equal(t, channelWrite{agt: "agt", me: "me1", idx: "L1", typeCode: "0x80", val: 0}, api.writes[1])
}

func TestSet_DeviceErrorCode(t *testing.T) {
	api := &fakeAPI{code: 10015}
	err := New(api).TurnOn(context.Background(), "agt", "me1", "L1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10015")
}

func TestTurnOnLight(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	require.NoError(t, enc.TurnOnLight(ctx, "agt", "lt1", "RGBW", nil))
	rgb := int64(0x00ff00ff)
	require.NoError(t, enc.TurnOnLight(ctx, "agt", "lt1", "RGBW", &rgb))

	require.Len(t, api.writes, 2)
	assert.Equal(t, "0x81", api.writes[0].typeCode)
	assert.Equal(t, channelWrite{agt: "agt", me: "lt1", idx: "RGBW", typeCode: "0xff", val: rgb}, api.writes[1])
}

func TestCoverChannels(t *testing.T) {
	tests := map[string]struct {
		devType string
		action  func(*Encoder, context.Context, string) error
		wantIdx string
	}{
		"window open":  {devType: "SL_SW_WIN", action: (*Encoder).openCover, wantIdx: "OP"},
		"window close": {devType: "SL_SW_WIN", action: (*Encoder).closeCover, wantIdx: "CL"},
		"window stop":  {devType: "SL_SW_WIN", action: (*Encoder).stopCover, wantIdx: "ST"},
		"motor open":   {devType: "SL_DOOYA", action: (*Encoder).openCover, wantIdx: "P1"},
		"motor close":  {devType: "SL_DOOYA", action: (*Encoder).closeCover, wantIdx: "P3"},
		"motor stop":   {devType: "SL_DOOYA", action: (*Encoder).stopCover, wantIdx: "P2"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{}
			require.NoError(t, tt.action(New(api), context.Background(), tt.devType))
			require.Len(t, api.writes, 1)
			assert.Equal(t, tt.wantIdx, api.writes[0].idx)
			assert.Equal(t, "0x81", api.writes[0].typeCode)
			assert.Equal(t, int64(1), api.writes[0].val)
		})
	}
}

func (e *Encoder) openCover(ctx context.Context, devType string) error {
	return e.OpenCover(ctx, devType, "agt", "cv1")
}

func (e *Encoder) closeCover(ctx context.Context, devType string) error {
	return e.CloseCover(ctx, devType, "agt", "cv1")
}

func (e *Encoder) stopCover(ctx context.Context, devType string) error {
	return e.StopCover(ctx, devType, "agt", "cv1")
}

func TestSetCoverPosition(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	require.NoError(t, enc.SetCoverPosition(ctx, "SL_DOOYA", "agt", "cv1", 40))
	require.Len(t, api.writes, 1)
	assert.Equal(t, channelWrite{agt: "agt", me: "cv1", idx: "P2", typeCode: "0xCE", val: 40}, api.writes[0])

	assert.Error(t, enc.SetCoverPosition(ctx, "SL_SW_WIN", "agt", "cv1", 40))
	assert.Error(t, enc.SetCoverPosition(ctx, "SL_DOOYA", "agt", "cv1", 120))
}

func TestSetTemperature(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	require.NoError(t, enc.SetTemperature(ctx, "V_AIR_P", "agt", "ac1", 23.5))
	require.NoError(t, enc.SetTemperature(ctx, "SL_CP_DN", "agt", "th1", 21.0))

	require.Len(t, api.writes, 2)
	assert.Equal(t, channelWrite{agt: "agt", me: "ac1", idx: "tT", typeCode: "0x88", val: 235}, api.writes[0])
	assert.Equal(t, channelWrite{agt: "agt", me: "th1", idx: "P3", typeCode: "0x88", val: 210}, api.writes[1])
}

func TestSetFanMode(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	require.NoError(t, enc.SetFanMode(ctx, "agt", "ac1", model.FanLow))
	require.NoError(t, enc.SetFanMode(ctx, "agt", "ac1", model.FanMedium))
	require.NoError(t, enc.SetFanMode(ctx, "agt", "ac1", model.FanHigh))
	assert.Error(t, enc.SetFanMode(ctx, "agt", "ac1", model.FanMode("turbo")))

	require.Len(t, api.writes, 3)
	assert.Equal(t, int64(15), api.writes[0].val)
	assert.Equal(t, int64(45), api.writes[1].val)
	assert.Equal(t, int64(76), api.writes[2].val)
	for _, w := range api.writes {
		assert.Equal(t, "F", w.idx)
		assert.Equal(t, "0xCE", w.typeCode)
	}
}

func TestSetHVACMode_AirUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("off", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, New(api).SetHVACMode(ctx, "V_AIR_P", "agt", "ac1", model.HVACOff, model.HVACCool))
		require.Len(t, api.writes, 1)
		assert.Equal(t, channelWrite{agt: "agt", me: "ac1", idx: "O", typeCode: "0x80", val: 0}, api.writes[0])
	})

	t.Run("mode change while running", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, New(api).SetHVACMode(ctx, "V_AIR_P", "agt", "ac1", model.HVACHeat, model.HVACCool))
		require.Len(t, api.writes, 1)
		assert.Equal(t, channelWrite{agt: "agt", me: "ac1", idx: "MODE", typeCode: "0xCE", val: 4}, api.writes[0])
	})

	t.Run("power on first when off", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, New(api).SetHVACMode(ctx, "V_AIR_P", "agt", "ac1", model.HVACCool, model.HVACOff))
		require.Len(t, api.writes, 2)
		assert.Equal(t, channelWrite{agt: "agt", me: "ac1", idx: "O", typeCode: "0x81", val: 1}, api.writes[0])
		assert.Equal(t, channelWrite{agt: "agt", me: "ac1", idx: "MODE", typeCode: "0xCE", val: 3}, api.writes[1])
	})
}

func TestSetHVACMode_Thermostat(t *testing.T) {
	ctx := context.Background()

	t.Run("off drops both channels", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, New(api).SetHVACMode(ctx, "SL_CP_DN", "agt", "th1", model.HVACOff, model.HVACHeat))
		require.Len(t, api.writes, 2)
		assert.Equal(t, "P1", api.writes[0].idx)
		assert.Equal(t, "P2", api.writes[1].idx)
		assert.Equal(t, "0x80", api.writes[0].typeCode)
		assert.Equal(t, "0x80", api.writes[1].typeCode)
	})

	t.Run("heat powers on", func(t *testing.T) {
		api := &fakeAPI{}
		require.NoError(t, New(api).SetHVACMode(ctx, "SL_CP_DN", "agt", "th1", model.HVACHeat, model.HVACOff))
		require.Len(t, api.writes, 1)
		assert.Equal(t, channelWrite{agt: "agt", me: "th1", idx: "P1", typeCode: "0x81", val: 1}, api.writes[0])
	})
}

func TestSendIRKeys(t *testing.T) {
	api := &fakeAPI{}
	enc := New(api)
	ctx := context.Background()

	keys := rest.SendKeysParams{Agt: "agt", Me: "spot1", Category: "tv", Brand: "sony", AI: "AI_IR_1", Keys: `["power"]`}
	require.NoError(t, enc.SendIRKeys(ctx, keys))
	require.Len(t, api.keys, 1)
	assert.Equal(t, keys, api.keys[0])

	ac := rest.SendACKeysParams{SendKeysParams: keys, Power: 1, Mode: 1, Temp: 24, Wind: 2, Swing: 0}
	require.NoError(t, enc.SendACKeys(ctx, ac))
	require.Len(t, api.acKeys, 1)
	assert.Equal(t, ac, api.acKeys[0])
}
