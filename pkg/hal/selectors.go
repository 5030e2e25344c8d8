package hal

// Object properties.
var (
	PropBaseClass    = Selector(FourCC("bcls"))
	PropClass        = Selector(FourCC("clas"))
	PropOwner        = Selector(FourCC("stdv"))
	PropName         = Selector(FourCC("lnam"))
	PropManufacturer = Selector(FourCC("lmak"))
	PropOwnedObjects = Selector(FourCC("ownd"))
)

// PlugIn properties.
var (
	PropDeviceList           = Selector(FourCC("dev#"))
	PropTranslateUIDToDevice = Selector(FourCC("uidd"))
	PropResourceBundle       = Selector(FourCC("rsrc"))
)

// Device properties.
var (
	PropDeviceUID                   = Selector(FourCC("uid "))
	PropModelUID                    = Selector(FourCC("muid"))
	PropTransportType               = Selector(FourCC("tran"))
	PropRelatedDevices              = Selector(FourCC("akin"))
	PropClockDomain                 = Selector(FourCC("clkd"))
	PropDeviceIsAlive               = Selector(FourCC("livn"))
	PropDeviceIsRunning             = Selector(FourCC("goin"))
	PropDeviceCanBeDefault          = Selector(FourCC("dflt"))
	PropDeviceCanBeDefaultSystem    = Selector(FourCC("sflt"))
	PropLatency                     = Selector(FourCC("ltnc"))
	PropStreams                     = Selector(FourCC("stm#"))
	PropControlList                 = Selector(FourCC("ctrl"))
	PropSafetyOffset                = Selector(FourCC("saft"))
	PropNominalSampleRate           = Selector(FourCC("nsrt"))
	PropAvailableNominalSampleRates = Selector(FourCC("nsr#"))
	PropIsHidden                    = Selector(FourCC("hidn"))
	PropPreferredChannelsForStereo  = Selector(FourCC("dch2"))
	PropPreferredChannelLayout      = Selector(FourCC("srnd"))
	PropZeroTimeStampPeriod         = Selector(FourCC("ring"))
)

// Stream properties.
var (
	PropStreamIsActive           = Selector(FourCC("sact"))
	PropStreamDirection          = Selector(FourCC("sdir"))
	PropTerminalType             = Selector(FourCC("term"))
	PropStartingChannel          = Selector(FourCC("schn"))
	PropVirtualFormat            = Selector(FourCC("sfmt"))
	PropAvailableVirtualFormats  = Selector(FourCC("sfma"))
	PropPhysicalFormat           = Selector(FourCC("pft "))
	PropAvailablePhysicalFormats = Selector(FourCC("pfta"))
)

// Control properties.
var (
	PropControlScope            = Selector(FourCC("cscp"))
	PropControlElement          = Selector(FourCC("celm"))
	PropScalarValue             = Selector(FourCC("lcsv"))
	PropDecibelValue            = Selector(FourCC("lcdv"))
	PropDecibelRange            = Selector(FourCC("lcdr"))
	PropConvertScalarToDecibels = Selector(FourCC("lcsd"))
	PropConvertDecibelsToScalar = Selector(FourCC("lcds"))
)

// Property value constants.
var (
	TransportTypeVirtual = FourCC("virt")
	TerminalMicrophone   = FourCC("micr")
	TerminalSpeaker      = FourCC("spkr")
)

var selectorNames = map[string]Selector{
	"base_class":                 PropBaseClass,
	"class":                      PropClass,
	"owner":                      PropOwner,
	"name":                       PropName,
	"manufacturer":               PropManufacturer,
	"owned_objects":              PropOwnedObjects,
	"device_list":                PropDeviceList,
	"translate_uid":              PropTranslateUIDToDevice,
	"resource_bundle":            PropResourceBundle,
	"device_uid":                 PropDeviceUID,
	"model_uid":                  PropModelUID,
	"transport_type":             PropTransportType,
	"related_devices":            PropRelatedDevices,
	"clock_domain":               PropClockDomain,
	"is_alive":                   PropDeviceIsAlive,
	"is_running":                 PropDeviceIsRunning,
	"can_be_default":             PropDeviceCanBeDefault,
	"can_be_default_system":      PropDeviceCanBeDefaultSystem,
	"latency":                    PropLatency,
	"streams":                    PropStreams,
	"control_list":               PropControlList,
	"safety_offset":              PropSafetyOffset,
	"nominal_sample_rate":        PropNominalSampleRate,
	"available_sample_rates":     PropAvailableNominalSampleRates,
	"is_hidden":                  PropIsHidden,
	"preferred_stereo":           PropPreferredChannelsForStereo,
	"preferred_layout":           PropPreferredChannelLayout,
	"zero_timestamp_period":      PropZeroTimeStampPeriod,
	"is_active":                  PropStreamIsActive,
	"direction":                  PropStreamDirection,
	"terminal_type":              PropTerminalType,
	"starting_channel":           PropStartingChannel,
	"virtual_format":             PropVirtualFormat,
	"available_virtual_formats":  PropAvailableVirtualFormats,
	"physical_format":            PropPhysicalFormat,
	"available_physical_formats": PropAvailablePhysicalFormats,
	"control_scope":              PropControlScope,
	"control_element":            PropControlElement,
	"scalar_value":               PropScalarValue,
	"decibel_value":              PropDecibelValue,
	"decibel_range":              PropDecibelRange,
	"scalar_to_decibels":         PropConvertScalarToDecibels,
	"decibels_to_scalar":         PropConvertDecibelsToScalar,
}
