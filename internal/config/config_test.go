package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)

	assert.Equal(t, Params{}, cfg.Params)
	assert.Equal(t, "CleanServerlessStack", cfg.StackName)
	assert.Equal(t, "ap-northeast-1", cfg.Region)
	assert.Equal(t, "http://localhost:8000", cfg.DynamoDBEndpoint)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Empty(t, cfg.TemplateBucket)
}

func TestLoad_EnvFile(t *testing.T) {
	path := writeEnvFile(t, "DYNAMO_TABLE_NAME=T1\nDYNAMO_PK_NAME=pk\nDYNAMO_SK_NAME=sk\nAPI_IMAGE_URI=repo/app:api\n")

	cfg, err := Load(Options{EnvFile: path})
	require.NoError(t, err)

	assert.Equal(t, Params{TableName: "T1", PKName: "pk", SKName: "sk"}, cfg.Params)
	assert.Equal(t, "repo/app:api", cfg.ImageURI(TargetAPI))
	assert.Empty(t, cfg.ImageURI(TargetS3Event))
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "DYNAMO_TABLE_NAME=FromFile\n")
	t.Setenv("DYNAMO_TABLE_NAME", "FromEnv")

	cfg, err := Load(Options{EnvFile: path})
	require.NoError(t, err)

	assert.Equal(t, "FromEnv", cfg.Params.TableName)
}

func TestLoad_EmptyEnvironmentOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "DYNAMO_TABLE_NAME=FromFile\nDYNAMO_PK_NAME=PK\n")
	t.Setenv("DYNAMO_TABLE_NAME", "")

	cfg, err := Load(Options{EnvFile: path})
	require.NoError(t, err)

	assert.Empty(t, cfg.Params.TableName)
	assert.Equal(t, "PK", cfg.Params.PKName)
}

func TestConfig_Env(t *testing.T) {
	cfg := &Config{Params: Params{TableName: "T1"}}

	assert.Equal(t, map[string]string{
		"DYNAMO_TABLE_NAME": "T1",
		"DYNAMO_PK_NAME":    "",
		"DYNAMO_SK_NAME":    "",
	}, cfg.Env())
}
