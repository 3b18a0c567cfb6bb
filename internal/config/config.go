// Package config reads the build-time parameter bag and the CLI settings.
//
// Values come from an optional dotenv-format file and the process environment;
// the environment wins. The result is a read-only Config constructed once and
// passed explicitly to the graph builder and the commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// Parameter bag keys.
const (
	KeyTableName = "DYNAMO_TABLE_NAME"
	KeyPKName    = "DYNAMO_PK_NAME"
	KeySKName    = "DYNAMO_SK_NAME"
)

// Runtime image targets selectable inside the shared deployment image.
const (
	TargetAPI     = "api"
	TargetS3Event = "s3event"
)

// DefaultEnvFile is read when no --env-file is given.
const DefaultEnvFile = ".env"

// Params is the parameter bag. Absent keys are empty strings.
type Params struct {
	TableName string
	PKName    string
	SKName    string
}

// Env returns the bag as the environment injected into every function,
// verbatim, empty values included.
func (p Params) Env() map[string]string {
	return map[string]string{
		KeyTableName: p.TableName,
		KeyPKName:    p.PKName,
		KeySKName:    p.SKName,
	}
}

// Config holds everything read at startup.
type Config struct {
	Params Params

	StackName        string
	StackDescription string
	// ImageURIs maps a runtime target to the image URI deployed for it.
	ImageURIs map[string]string

	Region           string
	DynamoDBEndpoint string
	S3Endpoint       string
	AccessKey        string
	SecretKey        string
	TemplateBucket   string
}

// Options configures Load.
type Options struct {
	// EnvFile is a dotenv-format file; a missing file is ignored.
	EnvFile string
}

// Load reads the configuration once.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	v.SetDefault(KeyTableName, "")
	v.SetDefault(KeyPKName, "")
	v.SetDefault(KeySKName, "")
	v.SetDefault("STACK_NAME", "CleanServerlessStack")
	v.SetDefault("STACK_DESCRIPTION", "Clean serverless micropost sample")
	v.SetDefault("API_IMAGE_URI", "")
	v.SetDefault("S3EVENT_IMAGE_URI", "")
	v.SetDefault("AWS_REGION", "ap-northeast-1")
	v.SetDefault("DYNAMODB_ENDPOINT", "http://localhost:8000")
	v.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	v.SetDefault("LOCAL_ACCESS_KEY", "dummy")
	v.SetDefault("LOCAL_SECRET_KEY", "dummy")
	v.SetDefault("TEMPLATE_BUCKET", "")

	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := readEnvFile(v, envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Params: Params{
			TableName: v.GetString(KeyTableName),
			PKName:    v.GetString(KeyPKName),
			SKName:    v.GetString(KeySKName),
		},
		StackName:        v.GetString("STACK_NAME"),
		StackDescription: v.GetString("STACK_DESCRIPTION"),
		ImageURIs: map[string]string{
			TargetAPI:     v.GetString("API_IMAGE_URI"),
			TargetS3Event: v.GetString("S3EVENT_IMAGE_URI"),
		},
		Region:           v.GetString("AWS_REGION"),
		DynamoDBEndpoint: v.GetString("DYNAMODB_ENDPOINT"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		AccessKey:        v.GetString("LOCAL_ACCESS_KEY"),
		SecretKey:        v.GetString("LOCAL_SECRET_KEY"),
		TemplateBucket:   v.GetString("TEMPLATE_BUCKET"),
	}

	return cfg, nil
}

func readEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	return nil
}

// Env returns the environment injected into every deployed function.
func (c *Config) Env() map[string]string {
	return c.Params.Env()
}

// ImageURI returns the configured image URI for a runtime target.
func (c *Config) ImageURI(target string) string {
	return c.ImageURIs[target]
}
