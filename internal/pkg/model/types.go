package model

// DeviceFamily groups vendor device types that share one decode rule.
type DeviceFamily string

func (df DeviceFamily) String() string {
	return string(df)
}

const (
	FamilySwitch       DeviceFamily = "switch"
	FamilyBinarySensor DeviceFamily = "binary_sensor"
	FamilyCover        DeviceFamily = "cover"
	FamilyEVSensor     DeviceFamily = "ev_sensor"
	FamilyGasSensor    DeviceFamily = "gas_sensor"
	FamilyLight        DeviceFamily = "light"
	FamilySpot         DeviceFamily = "spot"
	FamilyClimate      DeviceFamily = "climate"
	FamilyLock         DeviceFamily = "lock"
)

// Platform is the host-side entity platform an update is addressed to.
type Platform string

func (p Platform) String() string {
	return string(p)
}

const (
	PlatformSwitch       Platform = "switch"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformSensor       Platform = "sensor"
	PlatformCover        Platform = "cover"
	PlatformLight        Platform = "light"
	PlatformClimate      Platform = "climate"
)

var SwitchTypes = []string{
	"OD_WE_OT1",
	"SL_MC_ND1", "SL_MC_ND2", "SL_MC_ND3",
	"SL_NATURE",
	"SL_OL", "SL_OL_3C", "SL_OL_DE", "SL_OL_UK", "SL_OL_UL", "SL_OL_W",
	"SL_P_SW",
	"SL_S",
	"SL_SC_BB",
	"SL_SF_RC",
	"SL_SF_IF1", "SL_SF_IF2", "SL_SF_IF3",
	"SL_SW_CP1", "SL_SW_CP2", "SL_SW_CP3",
	"SL_SW_DM1",
	"SL_SW_FE1", "SL_SW_FE2",
	"SL_SW_IF1", "SL_SW_IF2", "SL_SW_IF3",
	"SL_SW_MJ1", "SL_SW_MJ2",
	"SL_SW_ND1", "SL_SW_ND2",
	"SL_SW_RC", "SL_SW_RC1", "SL_SW_RC2", "SL_SW_RC3",
	"SL_SPWM",
}

var BinarySensorTypes = []string{
	"SL_SC_G",
	"SL_SC_BG",
	"SL_SC_MHW",
	"SL_SC_BM",
	"SL_SC_CM",
	"SL_P_A",
}

var CoverTypes = []string{
	"SL_DOOYA",
	"SL_SW_WIN",
}

var LightTypes = []string{
	"SL_OL_W",
	"SL_SW_IF1", "SL_SW_IF3", // switches with a backlight channel
	"SL_CT_RGBW",
}

var ClimateTypes = []string{
	"V_AIR_P",
	"SL_CP_DN",
	"OD_MFRESH_M8088",
}

var SpotTypes = []string{
	"MSL_IRCTL",
	"OD_WE_IRCTL",
	"SL_SPOT",
}

var GasSensorTypes = []string{
	"SL_SC_WA",
	"SL_SC_CH",
	"SL_SC_CP",
	"ELIQ_EM",
}

var EVSensorTypes = []string{
	"SL_SC_THL",
	"SL_SC_BE",
	"SL_SC_CQ",
}

// OTSensorTypes are binary-sensor devices that additionally expose numeric
// side channels (illuminance, battery, ppm).
var OTSensorTypes = []string{
	"SL_SC_MHW",
	"SL_SC_BM",
	"SL_SC_G",
	"SL_SC_BG",
}

var GuardSensorTypes = []string{
	"SL_SC_G",
	"SL_SC_BG",
}

var MotionSensorTypes = []string{
	"SL_SC_MHW",
	"SL_SC_BM",
	"SL_SC_CM",
}

var LockTypes = []string{
	"SL_LK_LS",
	"SL_LK_GTM",
	"SL_LK_AG",
	"SL_LK_SG",
	"SL_LK_YL",
}

// AirTypes are the climate devices driven via O/MODE/F/tT/T; the rest are
// floor-heating thermostats driven via P1..P4.
var AirTypes = []string{"V_AIR_P"}

// familyTable is consulted in order, first match wins. A device type may
// appear in more than one list (SL_SW_IF1 is both a switch and a light);
// the switch decode rule is authoritative for it, and push events for the
// backlight channels still resolve through the light allow-list.
var familyTable = []struct {
	family DeviceFamily
	types  []string
}{
	{FamilyClimate, ClimateTypes},
	{FamilyLock, LockTypes},
	{FamilyCover, CoverTypes},
	{FamilyGasSensor, GasSensorTypes},
	{FamilyEVSensor, EVSensorTypes},
	{FamilyBinarySensor, BinarySensorTypes},
	{FamilySpot, SpotTypes},
	{FamilySwitch, SwitchTypes},
	{FamilyLight, LightTypes},
}

// ClassifyDevice maps a vendor device type to its decode family.
func ClassifyDevice(devType string) (DeviceFamily, bool) {
	for _, entry := range familyTable {
		for _, t := range entry.types {
			if t == devType {
				return entry.family, true
			}
		}
	}
	return "", false
}

// Channel allow-lists per family. An event whose idx is not listed for its
// family is ignored, not errored.
var (
	SwitchChannels       = []string{"L1", "L2", "L3", "P1", "P2", "P3"}
	BinarySensorChannels = []string{"M", "G", "B", "AXS", "P1"}
	CoverChannels        = []string{"P1", "OP"}
	OTSensorChannels     = []string{"Z", "V", "P3", "P4"}
	LightChannels        = []string{"RGB", "RGBW", "dark", "dark1", "dark2", "dark3", "bright", "bright1", "bright2", "bright3"}
)

// HVACMode values in the order the vendor indexes them; MODE events carry
// an integer index into this list.
type HVACMode string

func (m HVACMode) String() string {
	return string(m)
}

const (
	HVACOff     HVACMode = "off"
	HVACAuto    HVACMode = "auto"
	HVACFanOnly HVACMode = "fan_only"
	HVACCool    HVACMode = "cool"
	HVACHeat    HVACMode = "heat"
	HVACDry     HVACMode = "dry"
)

var HVACModes = []HVACMode{
	HVACOff,
	HVACAuto,
	HVACFanOnly,
	HVACCool,
	HVACHeat,
	HVACDry,
}

type FanMode string

func (m FanMode) String() string {
	return string(m)
}

const (
	FanLow    FanMode = "Speed_Low"
	FanMedium FanMode = "Speed_Medium"
	FanHigh   FanMode = "Speed_High"
)

// FanModeForSpeed buckets a vendor fan-speed value.
func FanModeForSpeed(speed int) FanMode {
	switch {
	case speed < 30:
		return FanLow
	case speed < 65:
		return FanMedium
	default:
		return FanHigh
	}
}

// FanSpeeds are representative vendor values for each bucket, used when
// encoding a set-fan-mode command.
var FanSpeeds = map[FanMode]int{
	FanLow:    15,
	FanMedium: 45,
	FanHigh:   76,
}
