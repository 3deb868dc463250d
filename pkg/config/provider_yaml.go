package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// YAML mirror structs. Kept separate from the canonical structs so
// the file format can evolve without touching consumers.

type configYAML struct {
	Listen    string         `yaml:"listen,omitempty"`
	Providers []providerYAML `yaml:"providers"`
}

type providerYAML struct {
	Noaa        *noaaYAML        `yaml:"noaa,omitempty"`
	Zezo        *zezoYAML        `yaml:"zezo,omitempty"`
	Meteofrance *meteofranceYAML `yaml:"meteofrance,omitempty"`
}

type noaaYAML struct {
	Enabled   bool         `yaml:"enabled"`
	Init      string       `yaml:"init,omitempty"`
	Converter string       `yaml:"converter,omitempty"`
	Grib2json string       `yaml:"grib2json,omitempty"`
	Jsons     *storageYAML `yaml:"jsons,omitempty"`
}

type zezoYAML struct {
	Enabled bool         `yaml:"enabled"`
	Init    string       `yaml:"init,omitempty"`
	Pngs    *storageYAML `yaml:"pngs,omitempty"`
}

type meteofranceYAML struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
}

type storageYAML struct {
	Dir       string `yaml:"dir,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig configYAML
	if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Listen:    yamlConfig.Listen,
		Providers: make([]ProviderData, len(yamlConfig.Providers)),
	}
	if config.Listen == "" {
		config.Listen = DefaultListen
	}

	for i, provider := range yamlConfig.Providers {
		if provider.Noaa != nil {
			config.Providers[i].Noaa = &NoaaData{
				Enabled:   provider.Noaa.Enabled,
				Init:      provider.Noaa.Init,
				Converter: provider.Noaa.Converter,
				Grib2json: provider.Noaa.Grib2json,
				Jsons:     convertStorage(provider.Noaa.Jsons),
			}
		}
		if provider.Zezo != nil {
			config.Providers[i].Zezo = &ZezoData{
				Enabled: provider.Zezo.Enabled,
				Init:    provider.Zezo.Init,
				Pngs:    convertStorage(provider.Zezo.Pngs),
			}
		}
		if provider.Meteofrance != nil {
			config.Providers[i].Meteofrance = &MeteofranceData{
				Enabled: provider.Meteofrance.Enabled,
				Token:   provider.Meteofrance.Token,
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func convertStorage(s *storageYAML) *StorageData {
	if s == nil {
		return nil
	}
	return &StorageData{
		Dir:       s.Dir,
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		Bucket:    s.Bucket,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
	}
}

// GetProviders returns the providers section
func (y *YAMLProvider) GetProviders() ([]ProviderData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config.Providers, nil
}

// GetListen returns the HTTP listen address
func (y *YAMLProvider) GetListen() (string, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return "", err
		}
	}
	return y.config.Listen, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}
