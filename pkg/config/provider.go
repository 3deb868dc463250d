package config

import "fmt"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetProviders() ([]ProviderData, error)
	GetListen() (string, error)

	IsReadOnly() bool
	Close() error
}

// DefaultListen is the HTTP listen address used when the
// configuration does not set one.
const DefaultListen = ":8000"

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Listen    string         `json:"listen,omitempty"`
	Providers []ProviderData `json:"providers"`
}

// ProviderData is one entry of the providers list. Exactly one of
// the fields is set.
type ProviderData struct {
	Noaa        *NoaaData        `json:"noaa,omitempty"`
	Zezo        *ZezoData        `json:"zezo,omitempty"`
	Meteofrance *MeteofranceData `json:"meteofrance,omitempty"`
}

// NoaaData holds configuration for the NOAA GFS provider
type NoaaData struct {
	Enabled bool `json:"enabled"`
	// Init optionally seeds the first download pass with a specific
	// reference time, RFC 3339.
	Init string `json:"init,omitempty"`
	// Converter selects how downloaded GRIB files become JSON:
	// "builtin" (default) or "grib2json" for the external tool.
	Converter string `json:"converter,omitempty"`
	// Grib2json overrides the path of the external converter command.
	Grib2json string `json:"grib2json,omitempty"`
	// Jsons is where converted forecasts are stored.
	Jsons *StorageData `json:"jsons,omitempty"`
}

// ZezoData holds configuration for the zezo.org provider
type ZezoData struct {
	Enabled bool   `json:"enabled"`
	Init    string `json:"init,omitempty"`
	// Pngs is where downloaded wind rasters are stored.
	Pngs *StorageData `json:"pngs,omitempty"`
}

// MeteofranceData holds configuration for the Météo-France provider.
// Accepted but not implemented yet.
type MeteofranceData struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}

// StorageData selects a storage backend: a local directory when Dir
// is set, an S3-compatible object store when Bucket is set.
type StorageData struct {
	Dir string `json:"dir,omitempty"`

	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

// Validate checks the configuration for inconsistencies that would
// otherwise only surface at run time.
func (c *ConfigData) Validate() error {
	for i, p := range c.Providers {
		n := 0
		if p.Noaa != nil {
			n++
		}
		if p.Zezo != nil {
			n++
		}
		if p.Meteofrance != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("provider entry %d must configure exactly one provider, has %d", i, n)
		}
		if p.Noaa != nil && p.Noaa.Enabled {
			if err := validateStorage("noaa jsons", p.Noaa.Jsons); err != nil {
				return err
			}
			switch p.Noaa.Converter {
			case "", "builtin", "grib2json":
			default:
				return fmt.Errorf("noaa converter %q is not one of builtin, grib2json", p.Noaa.Converter)
			}
		}
		if p.Zezo != nil && p.Zezo.Enabled {
			if err := validateStorage("zezo pngs", p.Zezo.Pngs); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStorage(name string, s *StorageData) error {
	if s == nil {
		return fmt.Errorf("%s storage is not configured", name)
	}
	switch {
	case s.Dir != "" && s.Bucket != "":
		return fmt.Errorf("%s storage sets both dir and bucket", name)
	case s.Dir == "" && s.Bucket == "":
		return fmt.Errorf("%s storage sets neither dir nor bucket", name)
	}
	return nil
}
