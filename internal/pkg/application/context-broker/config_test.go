package contextbroker

import (
	"bytes"
	"testing"

	"github.com/matryer/is"
)

func TestLoadConfig(t *testing.T) {
	is, config := setupConfigTest(t)

	is.Equal(len(config.Tenants), 2) // should have two tenants
}

func TestLoadTenant(t *testing.T) {
	is, config := setupConfigTest(t)
	tenant := config.Tenants[0]

	is.Equal(tenant.ID, "default")
	is.Equal(tenant.Name, "Kommunen")
	is.Equal(tenant.Seed, "/opt/diwise/config/vehicles.json")
}

func TestLoadLimits(t *testing.T) {
	is, config := setupConfigTest(t)
	limits := config.Limits()

	is.Equal(limits.InstanceLimitDefault, 50)
	is.Equal(limits.InstanceLimitMax, 1000)
	is.Equal(limits.EntityLimitDefault, 30) // should fall back to the default when left out
	is.Equal(limits.EntityLimitMax, 100)
}

func TestLoadJSONLDTerms(t *testing.T) {
	is, config := setupConfigTest(t)

	is.Equal(config.JSONLD.Vocab, "https://uri.etsi.org/ngsi-ld/default-context/")
	is.Equal(config.JSONLD.Terms["Vehicle"], "https://uri.fiware.org/ns/dataModels#Vehicle")
	is.Equal(len(config.JSONLD.Contexts), 1)
}

func setupConfigTest(t *testing.T) (*is.I, *Config) {
	is := is.New(t)
	cfgData := bytes.NewBuffer([]byte(configFile))
	config, err := LoadConfiguration(cfgData)
	is.NoErr(err)

	return is, config
}

var configFile string = `
tenants:
  - id: default
    name: Kommunen
    seed: /opt/diwise/config/vehicles.json
  - id: secondary
    name: Bolaget
temporal:
  instanceLimitDefault: 50
  instanceLimitMax: 1000
jsonld:
  vocab: https://uri.etsi.org/ngsi-ld/default-context/
  contexts:
    - https://raw.githubusercontent.com/diwise/context-broker/main/assets/jsonldcontexts/default-context.jsonld
  terms:
    Vehicle: https://uri.fiware.org/ns/dataModels#Vehicle
    speed: https://uri.fiware.org/ns/dataModels#speed
`
