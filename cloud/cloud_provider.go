package cloud

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/cloud/aws"
	"github.com/bbbpool/bbbpool/cloud/scaleway"
	"github.com/bbbpool/bbbpool/logging"
)

// BuiltinHosterProviders tracks the available hoster providers. The provider
// name is the value of the hoster configuration key.
var BuiltinHosterProviders = map[string]HosterProviderFactory{
	"aws":      aws.NewHosterProvider,
	"scaleway": scaleway.NewHosterProvider,
}

// HosterProviderFactory is a factory method type for instantiating a new
// instance of a hoster provider.
type HosterProviderFactory func(config *structs.Config, logger *logging.Logger) (structs.HosterProvider, error)

// NewHosterProvider finds the factory of the configured hoster and sets up
// the provider.
func NewHosterProvider(config *structs.Config, logger *logging.Logger) (structs.HosterProvider, error) {
	if config.Hoster == "" {
		return nil, fmt.Errorf("no hoster provider specified")
	}

	// Lookup the hoster provider factory function.
	factory, ok := BuiltinHosterProviders[config.Hoster]
	if !ok {
		// Build a list of all supported hoster providers.
		providers := reflect.ValueOf(BuiltinHosterProviders).MapKeys()
		available := make([]string, len(providers))

		for i := 0; i < len(providers); i++ {
			available[i] = providers[i].String()
		}
		sort.Strings(available)

		return nil, fmt.Errorf("unknown hoster provider %v, must be one of: %v",
			config.Hoster, strings.Join(available, ","))
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("an error occurred while setting up hoster "+
			"provider %v: %v", config.Hoster, err)
	}

	logger.Debug("cloud/hoster_provider: initialized hoster provider %v", config.Hoster)

	return provider, nil
}
