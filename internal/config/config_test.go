package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetSliceTrimsAndSkipsEmpty(t *testing.T) {
	viper.Set("TEST_SLICE", " a, ,b,c ")
	t.Cleanup(func() { viper.Set("TEST_SLICE", "") })

	assert.Equal(t, []string{"a", "b", "c"}, getSlice("TEST_SLICE", ","))
	assert.Equal(t, []string{}, getSlice("TEST_SLICE_UNSET", ","))
}

func TestGetAppliesDefaults(t *testing.T) {
	setDefaults()
	viper.Set("LEDGER_STORE", "SQLite")
	viper.Set("MULTISIG_ADMINS", "k1,k2")
	t.Cleanup(func() {
		viper.Set("LEDGER_STORE", "")
		viper.Set("MULTISIG_ADMINS", "")
	})

	cfg := Get()
	assert.Equal(t, defaultProgramId, cfg.ProgramId)
	assert.Equal(t, "8080", cfg.ApiPort)
	assert.Equal(t, 300, cfg.SignatureWindow)
	assert.Empty(t, cfg.Client.Keypairs)
	assert.Equal(t, uint8(2), cfg.Market.MultisigThreshold)
	assert.False(t, cfg.Market.EnforceThreshold)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Market.MultisigAdmins)
	assert.Equal(t, "sqlite", cfg.Snapshot.Driver)
	assert.Equal(t, "ledger", cfg.Snapshot.Key)
	assert.Equal(t, 10, cfg.Snapshot.Interval)
	assert.Equal(t, "./mappings", cfg.ElasticSearch.MappingDir)
}
