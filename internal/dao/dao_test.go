package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := BuildDSN(&DBConfig{Type: "mysql", User: "root", Pass: "p", Host: "127.0.0.1", Port: "3306", Name: "agentchat"})
	require.NoError(t, err)
	assert.Equal(t, "root:p@tcp(127.0.0.1:3306)/agentchat?charset=utf8mb4&parseTime=True&loc=Local", dsn)

	dsn, err = BuildDSN(&DBConfig{Type: "pgsql", User: "u", Pass: "p", Host: "db", Port: "5432", Name: "agentchat"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "host=db user=u password=p dbname=agentchat port=5432")

	_, err = BuildDSN(&DBConfig{Type: "oracle"})
	assert.Error(t, err)
}
