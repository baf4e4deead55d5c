package scpi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	MIN_CHANNELS = 1
	MAX_CHANNELS = 255
)

// Configuration contains one Device and all commands available for it.
// It is loaded once and must be treated as immutable afterwards.
type Configuration struct {
	Device   Device
	Commands []CommandDefinition
}

type Device struct {
	// Address in format IP:PORT. Informational, the session is told its target at connect time.
	Address  string
	Channels uint8
}

type CommandDefinition struct {
	Name          string
	PerChannel    bool
	Template      string
	AllowedValues []string
}

// String returns the display name of the command.
func (cmd CommandDefinition) String() string {
	return cmd.Name
}

// Equal compares every field. Two definitions sharing a name are still distinct
// when template, channel flag or values differ.
func (cmd CommandDefinition) Equal(other CommandDefinition) bool {
	return cmd.Name == other.Name &&
		cmd.PerChannel == other.PerChannel &&
		cmd.Template == other.Template &&
		slices.Equal(cmd.AllowedValues, other.AllowedValues)
}

// FindCommand returns the first command with the given name.
func (cfg *Configuration) FindCommand(name string) (CommandDefinition, bool) {
	for i := range cfg.Commands {
		if cfg.Commands[i].Name == name {
			return cfg.Commands[i], true
		}
	}
	return CommandDefinition{}, false
}

// raw document model. pointers let the loader tell a missing key from a zero value
type catalogDocument struct {
	Device   *deviceDocument   `mapstructure:"device"`
	Commands []commandDocument `mapstructure:"commands"`
}

type deviceDocument struct {
	Address  *string `mapstructure:"address"`
	Channels *int    `mapstructure:"channels"`
}

type commandDocument struct {
	Channel *bool    `mapstructure:"channel"`
	Name    *string  `mapstructure:"name"`
	Scpi    *string  `mapstructure:"scpi"`
	Values  []string `mapstructure:"values"`
}

// LoadCatalog reads a device catalog file. The format is picked from the file
// extension (yaml, toml, json, ...).
func LoadCatalog(path string) (*Configuration, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &ConfigError{Kind: ParseError, Path: path, Err: err}
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Kind: ParseError, Path: path, Err: err}
	}
	return decodeCatalog(v, path)
}

// ParseCatalog reads a catalog document from memory. format is a viper config
// type such as "yaml", "toml" or "json".
func ParseCatalog(in io.Reader, format string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType(strings.TrimPrefix(format, "."))
	if err := v.ReadConfig(in); err != nil {
		return nil, &ConfigError{Kind: ParseError, Err: err}
	}
	return decodeCatalog(v, "")
}

func decodeCatalog(v *viper.Viper, path string) (*Configuration, error) {
	var doc catalogDocument
	if err := v.Unmarshal(&doc, strictDecoding); err != nil {
		return nil, &ConfigError{Kind: ParseError, Path: path, Err: err}
	}

	schemaErr := func(field string, format string, args ...any) error {
		return &ConfigError{Kind: SchemaMismatch, Path: path, Field: field, Err: fmt.Errorf(format, args...)}
	}

	if doc.Device == nil {
		return nil, schemaErr("device", "missing device section")
	}
	if doc.Device.Address == nil || *doc.Device.Address == "" {
		return nil, schemaErr("device.address", "missing device address")
	}
	if doc.Device.Channels == nil {
		return nil, schemaErr("device.channels", "missing channel count")
	}
	channels := *doc.Device.Channels
	if channels < MIN_CHANNELS || channels > MAX_CHANNELS {
		return nil, schemaErr("device.channels", "channel count %d out of range %d..%d", channels, MIN_CHANNELS, MAX_CHANNELS)
	}
	if len(doc.Commands) == 0 {
		return nil, schemaErr("commands", "at least one command is required")
	}

	cfg := &Configuration{
		Device: Device{
			Address:  *doc.Device.Address,
			Channels: uint8(channels),
		},
		Commands: make([]CommandDefinition, 0, len(doc.Commands)),
	}
	for i, cmd := range doc.Commands {
		field := fmt.Sprintf("commands[%d]", i)
		switch {
		case cmd.Name == nil:
			return nil, schemaErr(field+".name", "missing command name")
		case cmd.Channel == nil:
			return nil, schemaErr(field+".channel", "missing channel flag for %q", *cmd.Name)
		case cmd.Scpi == nil:
			return nil, schemaErr(field+".scpi", "missing scpi template for %q", *cmd.Name)
		case len(cmd.Values) == 0:
			return nil, schemaErr(field+".values", "command %q needs at least one value", *cmd.Name)
		}
		cfg.Commands = append(cfg.Commands, CommandDefinition{
			Name:          *cmd.Name,
			PerChannel:    *cmd.Channel,
			Template:      *cmd.Scpi,
			AllowedValues: slices.Clone(cmd.Values),
		})
	}
	return cfg, nil
}

// strictDecoding turns off viper's type coercion: no scalar to list, number to
// string or number to bool conversion, and no truncation of fractional numbers.
func strictDecoding(dc *mapstructure.DecoderConfig) {
	dc.WeaklyTypedInput = false
	dc.DecodeHook = rejectFractions
}

func rejectFractions(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}
