package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	stackgen "github.com/cleanserverless/stackgen"
)

func TestBuildCmd_Stdout(t *testing.T) {
	env := writeEnvFile(t, micropostEnv)

	out, err := execute(t, "build", "--env-file", env)
	require.NoError(t, err)

	var tmpl stackgen.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	assert.Equal(t, "2010-09-09", tmpl.AWSTemplateFormatVersion)

	table, ok := tmpl.Resources["ResourceTable"]
	require.True(t, ok)
	assert.Equal(t, "AWS::DynamoDB::Table", table.Type)
	assert.Equal(t, "microposts", table.Properties["TableName"])

	fn, ok := tmpl.Resources["GetUserFunction"]
	require.True(t, ok)
	assert.Equal(t, "AWS::Lambda::Function", fn.Type)
}

func TestBuildCmd_OutputFileYAML(t *testing.T) {
	env := writeEnvFile(t, micropostEnv)
	output := filepath.Join(t.TempDir(), "template.yaml")

	out, err := execute(t, "build", "--env-file", env, "-f", "yaml", "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var tmpl stackgen.Template
	require.NoError(t, yaml.Unmarshal(data, &tmpl))
	assert.Contains(t, tmpl.Resources, "CleanServerlessTestBucket")
	require.Contains(t, tmpl.Outputs, "ApiEndpoint")

	endpoint, ok := tmpl.Outputs["ApiEndpoint"].Value.(map[string]any)
	require.True(t, ok, "ApiEndpoint value should be a mapping, got %T", tmpl.Outputs["ApiEndpoint"].Value)
	assert.Contains(t, endpoint, "Fn::Join")

	tableName, ok := tmpl.Outputs["TableName"].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ResourceTable", tableName["Ref"])
}

func TestBuildCmd_MissingEnvFile(t *testing.T) {
	out, err := execute(t, "build", "--env-file", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	var tmpl stackgen.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	_, named := tmpl.Resources["ResourceTable"].Properties["TableName"]
	assert.False(t, named)
}

func TestBuildCmd_UnknownFormat(t *testing.T) {
	env := writeEnvFile(t, micropostEnv)
	_, err := execute(t, "build", "--env-file", env, "-f", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestImageParameters(t *testing.T) {
	t.Setenv("API_IMAGE_URI", "123.dkr.ecr.ap-northeast-1.amazonaws.com/micropost:api")

	root := &rootOptions{envFile: writeEnvFile(t, micropostEnv)}
	cfg, g, err := loadGraph(root)
	require.NoError(t, err)

	params := imageParameters(cfg, g)
	assert.Equal(t, "123.dkr.ecr.ap-northeast-1.amazonaws.com/micropost:api", params["ApiImageUri"])
	assert.Contains(t, params, "S3eventImageUri")
}
