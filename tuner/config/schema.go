package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Configuration keys, as used in configuration files and on the command line.
const (
	KeySampleRate            = "SAMPLE_RATE"
	KeyOversampling          = "OVERSAMPLING"
	KeyRootFrequencyError    = "ROOT_FREQUENCY_ERROR"
	KeyMinFrequency          = "MIN_FREQUENCY"
	KeyFFTSize               = "FFT_SIZE"
	KeyTemporalWindow        = "TEMPORAL_WINDOW"
	KeyNoiseThreshold        = "NOISE_THRESHOLD"
	KeyCalculationRate       = "CALCULATION_RATE"
	KeyVisualizationRate     = "VISUALIZATION_RATE"
	KeyPeakNumber            = "PEAK_NUMBER"
	KeyPeakHalfWidth         = "PEAK_HALF_WIDTH"
	KeyPeakRejectionRelation = "PEAK_REJECTION_RELATION"
	KeyDFTNumber             = "DFT_NUMBER"
	KeyDFTSize               = "DFT_SIZE"
	KeyGain                  = "GAIN"
	KeyMaxNRIter             = "MAX_NR_ITER"
	KeyWindow                = "WINDOW"

	// KeyPeakOrder is the deprecated name of KeyPeakHalfWidth.
	KeyPeakOrder = "PEAK_ORDER"
)

var (
	// ErrUnknownKey is returned for keys that are not in the schema.
	ErrUnknownKey = errors.New("config: unknown key")
	// ErrInvalidValue is returned when a value does not parse for its field.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Kind is the value type of a field.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// Field describes one configuration key.
type Field struct {
	Key   string
	Kind  Kind
	Unit  string
	Usage string
	// AliasOf names the current key for a deprecated field.
	AliasOf string

	get func(*Config) any
}

// Deprecated reports whether the key is a legacy alias.
func (f Field) Deprecated() bool { return f.AliasOf != "" }

// Get formats the field value of c.
func (f Field) Get(c Config) string {
	switch v := f.get(&c).(type) {
	case *float64:
		return strconv.FormatFloat(*v, 'g', -1, 64)
	case *int:
		return strconv.Itoa(*v)
	case *string:
		return *v
	default:
		return ""
	}
}

// Set parses value into the field of c.
func (f Field) Set(c *Config, value string) error {
	value = strings.TrimSpace(value)

	switch p := f.get(c).(type) {
	case *float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, f.Key, value, err)
		}

		*p = v
	case *int:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, f.Key, value, err)
		}

		*p = v
	case *string:
		*p = value
	}

	return nil
}

func floatField(key, unit, usage string, get func(*Config) *float64) Field {
	return Field{Key: key, Kind: KindFloat, Unit: unit, Usage: usage, get: func(c *Config) any { return get(c) }}
}

func intField(key, unit, usage string, get func(*Config) *int) Field {
	return Field{Key: key, Kind: KindInt, Unit: unit, Usage: usage, get: func(c *Config) any { return get(c) }}
}

var fields = []Field{
	floatField(KeySampleRate, "Hz", "capture sample rate", func(c *Config) *float64 { return &c.SampleRate }),
	intField(KeyOversampling, "", "decimation factor applied before analysis", func(c *Config) *int { return &c.Oversampling }),
	floatField(KeyRootFrequencyError, "cents", "detune of the A4 reference from 440 Hz", func(c *Config) *float64 { return &c.RootFrequencyError }),
	floatField(KeyMinFrequency, "Hz", "lowest accepted fundamental", func(c *Config) *float64 { return &c.MinFrequency }),
	intField(KeyFFTSize, "samples", "coarse transform size (power of two)", func(c *Config) *int { return &c.FFTSize }),
	floatField(KeyTemporalWindow, "s", "analysis buffer length", func(c *Config) *float64 { return &c.TemporalWindow }),
	floatField(KeyNoiseThreshold, "dB", "peak level required over the noise floor", func(c *Config) *float64 { return &c.NoiseThreshold }),
	floatField(KeyCalculationRate, "Hz", "analysis cycles per second", func(c *Config) *float64 { return &c.CalculationRate }),
	floatField(KeyVisualizationRate, "Hz", "result publications per second", func(c *Config) *float64 { return &c.VisualizationRate }),
	intField(KeyPeakNumber, "", "maximum candidate peaks", func(c *Config) *int { return &c.PeakNumber }),
	intField(KeyPeakHalfWidth, "bins", "local maximum half width", func(c *Config) *int { return &c.PeakHalfWidth }),
	floatField(KeyPeakRejectionRelation, "dB", "max level of the nearest stronger peak over a candidate", func(c *Config) *float64 { return &c.PeakRejectionRelation }),
	intField(KeyDFTNumber, "", "zoom DFT passes", func(c *Config) *int { return &c.DFTNumber }),
	intField(KeyDFTSize, "points", "points per zoom DFT pass", func(c *Config) *int { return &c.DFTSize }),
	floatField(KeyGain, "dB", "input gain", func(c *Config) *float64 { return &c.Gain }),
	intField(KeyMaxNRIter, "", "Newton-Raphson polish iterations", func(c *Config) *int { return &c.MaxNRIter }),
	{Key: KeyWindow, Kind: KindString, Usage: "analysis window", get: func(c *Config) any { return &c.Window }},
}

var deprecated = []Field{
	{Key: KeyPeakOrder, Kind: KindInt, Unit: "bins", Usage: "deprecated, use " + KeyPeakHalfWidth, AliasOf: KeyPeakHalfWidth,
		get: func(c *Config) any { return &c.PeakHalfWidth }},
}

// Fields returns the current (non-deprecated) keys in file order.
func Fields() []Field {
	return append([]Field(nil), fields...)
}

// Lookup finds a field by key, including deprecated aliases.
// Keys are matched case-insensitively.
func Lookup(key string) (Field, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))

	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}

	for _, f := range deprecated {
		if f.Key == key {
			return f, true
		}
	}

	return Field{}, false
}

// Set parses value into the field named key.
func Set(c *Config, key, value string) error {
	f, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return f.Set(c, value)
}

// Get formats the value of the field named key.
func Get(c Config, key string) (string, error) {
	f, ok := Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return f.Get(c), nil
}

// ParseAssignment splits "KEY=VALUE" (or "KEY = VALUE").
func ParseAssignment(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not KEY=VALUE", ErrInvalidValue, s)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", fmt.Errorf("%w: empty key in %q", ErrInvalidValue, s)
	}

	return key, strings.TrimSpace(value), nil
}
