package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TIER"

// Default host location, used when the sensor has no coordinates of its own.
const (
	defaultHomeLatitude  = 52.3731339
	defaultHomeLongitude = 4.8903147
)

// HomeOptions is the location provided by the host.
type HomeOptions struct {
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

type TierOptions struct {
	BaseURL      string        `json:"base-url" mapstructure:"base-url"`
	ScanInterval time.Duration `json:"scan-interval" mapstructure:"scan-interval"`
}

type HTTPOptions struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// Options is the complete configuration of the daemon.
//
// Latitude and Longitude are kept as text so that "not configured" can be
// told apart from zero; they must be given together.
type Options struct {
	ConfigFile string `json:"-" mapstructure:"config"`
	EnvFile    string `json:"-" mapstructure:"env-file"`

	APIKey    string  `json:"api-key" mapstructure:"api-key"`
	Name      string  `json:"name" mapstructure:"name"`
	Radius    float64 `json:"radius" mapstructure:"radius"`
	Latitude  string  `json:"latitude" mapstructure:"latitude"`
	Longitude string  `json:"longitude" mapstructure:"longitude"`

	Home *HomeOptions `json:"home" mapstructure:"home"`
	Tier *TierOptions `json:"tier" mapstructure:"tier"`
	HTTP *HTTPOptions `json:"http" mapstructure:"http"`
	MQTT *MQTTOptions `json:"mqtt" mapstructure:"mqtt"`
	Log  *LogOptions  `json:"log" mapstructure:"log"`

	location Location
}

func NewOptions() *Options {
	return &Options{
		EnvFile: ".env",
		Name:    DefaultSensorName,
		Radius:  DefaultRadius,
		Home: &HomeOptions{
			Latitude:  defaultHomeLatitude,
			Longitude: defaultHomeLongitude,
		},
		Tier: &TierOptions{
			BaseURL:      DefaultTierBaseURL,
			ScanInterval: DefaultScanInterval,
		},
		HTTP: &HTTPOptions{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		MQTT: NewMQTTOptions(),
		Log:  NewLogOptions(),
	}
}

// FlagSets returns the flags grouped by concern, in display order.
func (o *Options) FlagSets() []*pflag.FlagSet {
	global := pflag.NewFlagSet("global", pflag.ContinueOnError)
	global.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to a YAML, JSON or TOML config file.")
	global.StringVar(&o.EnvFile, "env-file", o.EnvFile, "Dotenv file loaded into the environment before reading configuration.")

	sensor := pflag.NewFlagSet("sensor", pflag.ContinueOnError)
	sensor.StringVar(&o.APIKey, "api-key", o.APIKey, "Tier API key (required).")
	sensor.StringVar(&o.Name, "name", o.Name, "Name of the sensor.")
	sensor.Float64Var(&o.Radius, "radius", o.Radius, "Search radius around the location, in metres.")
	sensor.StringVar(&o.Latitude, "latitude", o.Latitude, "Latitude of the observation point. Defaults to home.latitude.")
	sensor.StringVar(&o.Longitude, "longitude", o.Longitude, "Longitude of the observation point. Defaults to home.longitude.")
	sensor.Float64Var(&o.Home.Latitude, "home.latitude", o.Home.Latitude, "Latitude of the host location.")
	sensor.Float64Var(&o.Home.Longitude, "home.longitude", o.Home.Longitude, "Longitude of the host location.")

	tierFS := pflag.NewFlagSet("tier", pflag.ContinueOnError)
	tierFS.StringVar(&o.Tier.BaseURL, "tier.base-url", o.Tier.BaseURL, "Base URL of the Tier platform API.")
	tierFS.DurationVar(&o.Tier.ScanInterval, "tier.scan-interval", o.Tier.ScanInterval, "How often the sensor is asked to update. Fetches are still limited to one per 10 minutes.")

	httpFS := pflag.NewFlagSet("http", pflag.ContinueOnError)
	httpFS.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP listen address.")
	httpFS.DurationVar(&o.HTTP.ShutdownTimeout, "http.shutdown-timeout", o.HTTP.ShutdownTimeout, "HTTP server shutdown timeout.")

	mqttFS := pflag.NewFlagSet("mqtt", pflag.ContinueOnError)
	o.MQTT.AddFlags(mqttFS)

	logFS := pflag.NewFlagSet("log", pflag.ContinueOnError)
	o.Log.AddFlags(logFS)

	return []*pflag.FlagSet{global, sensor, tierFS, httpFS, mqttFS, logFS}
}

// Load fills o from, in decreasing priority, flags, TIER_* environment
// variables, the config file and defaults. The dotenv file only adds to the
// environment; variables already set win.
func (o *Options) Load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if envFile := v.GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if cfg := v.GetString("config"); cfg != "" {
		v.SetConfigFile(cfg)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", cfg, err)
		}
	}

	if err := v.Unmarshal(o); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}
	return nil
}

// Complete resolves the observation point.
func (o *Options) Complete() error {
	o.location = Location{Lat: o.Home.Latitude, Lon: o.Home.Longitude}
	if o.Latitude == "" || o.Longitude == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(o.Latitude), 64)
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(o.Longitude), 64)
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	o.location = Location{Lat: lat, Lon: lon}
	return nil
}

func (o *Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.APIKey) == "" {
		errs = append(errs, errors.New("api-key is required"))
	}
	if !(o.Radius > 0) {
		errs = append(errs, fmt.Errorf("radius must be positive, got %v", o.Radius))
	}
	if (o.Latitude == "") != (o.Longitude == "") {
		errs = append(errs, errors.New("latitude and longitude must be set together"))
	}
	if err := validateLocation(o.location); err != nil {
		errs = append(errs, err)
	}
	if o.Tier.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("tier.scan-interval must be positive, got %s", o.Tier.ScanInterval))
	}
	if o.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	errs = append(errs, o.MQTT.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Location returns the resolved observation point. Valid after Complete.
func (o *Options) Location() Location {
	return o.location
}

func validateLocation(l Location) error {
	var errs []error
	if !(l.Lat >= -90 && l.Lat <= 90) {
		errs = append(errs, fmt.Errorf("latitude %v out of range [-90, 90]", l.Lat))
	}
	if !(l.Lon >= -180 && l.Lon <= 180) {
		errs = append(errs, fmt.Errorf("longitude %v out of range [-180, 180]", l.Lon))
	}
	return errors.Join(errs...)
}
