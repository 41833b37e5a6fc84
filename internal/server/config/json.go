package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/varejo/internal/flagx"
	"github.com/dmitrijs2005/varejo/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Durations use
// timex.Duration so both "60s" and integer nanoseconds are accepted. Fields
// left out of the file keep the values already in Config.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
	S3BucketPrefix               *string         `json:"s3_bucket_prefix"`
	PageSize                     *int            `json:"page_size"`
	CashierCheckInterval         *timex.Duration `json:"cashier_check_interval"`
	TimeZone                     *string         `json:"time_zone"`
}

// parseJson overlays config with the JSON file named by -c/-config or
// $VAREJO_CONFIG. No path means nothing to do; an unreadable or invalid file
// panics, like a bad flag does.
func parseJson(config *Config) {
	path := flagx.ConfigFilePath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.S3BucketPrefix, c.S3BucketPrefix)
	setString(&config.TimeZone, c.TimeZone)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.CashierCheckInterval != nil {
		config.CashierCheckInterval = c.CashierCheckInterval.Duration
	}
	if c.PageSize != nil {
		config.PageSize = *c.PageSize
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
