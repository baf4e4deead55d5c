package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device           Device
	Id               string
	SensorType       string
	Name             string
	UniqueId         string
	EntityCategory   string // diagnostic, config, nil
	DeviceClass      string // connectivity for the session state
	EnabledByDefault *bool
	Icon             string
}

// GenericText is a writable text entity, used to send raw command lines.
type GenericText struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
	Max      int
}
